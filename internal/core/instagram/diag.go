package instagram

import (
	"sort"

	"github.com/guiyumin/mediadrop/internal/core/logger"
)

// Diagnosis reports what a session file yields, for the diag endpoint.
type Diagnosis struct {
	SessionFile   string   `json:"session_file"`
	SessionExists bool     `json:"session_exists"`
	Loaded        bool     `json:"loaded"`
	Cookies       []string `json:"cookies"`
}

// Diagnose loads sessionFile into a throwaway client and lists the cookie
// names it produced. It never fails; problems show up as Loaded=false.
func Diagnose(sessionFile string) Diagnosis {
	d := Diagnosis{SessionFile: sessionFile, Cookies: []string{}}
	if sessionFile == "" || !fileExists(sessionFile) {
		return d
	}
	d.SessionExists = true

	c, err := New(Options{})
	if err != nil {
		return d
	}
	if err := c.LoadSessionFile(sessionFile); err != nil {
		log.Emit(logger.WARNING, "Diag load of %s failed: %v", sessionFile, err)
		return d
	}
	d.Loaded = true

	for _, ck := range c.Cookies() {
		d.Cookies = append(d.Cookies, ck.Name)
	}
	sort.Strings(d.Cookies)
	return d
}
