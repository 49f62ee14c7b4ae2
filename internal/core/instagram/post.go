package instagram

import (
	"encoding/json"
	"errors"
)

// Media is one downloadable item of a post. Videos also carry their cover
// image.
type Media struct {
	VideoURL string
	ImageURL string
}

type candidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type apiItem struct {
	MediaType      int         `json:"media_type"`
	VideoVersions  []candidate `json:"video_versions"`
	ImageVersions2 struct {
		Candidates []candidate `json:"candidates"`
	} `json:"image_versions2"`
	CarouselMedia []apiItem `json:"carousel_media"`
}

type graphNode struct {
	IsVideo    bool   `json:"is_video"`
	VideoURL   string `json:"video_url"`
	DisplayURL string `json:"display_url"`
	Children   struct {
		Edges []struct {
			Node graphNode `json:"node"`
		} `json:"edges"`
	} `json:"edge_sidecar_to_children"`
}

type postResponse struct {
	Items   []apiItem `json:"items"`
	GraphQL struct {
		ShortcodeMedia *graphNode `json:"shortcode_media"`
	} `json:"graphql"`
}

var errUnknownShape = errors.New("unrecognised post response")

// parsePost understands both the v1 "items" shape and the older
// graphql.shortcode_media shape.
func parsePost(body []byte) ([]Media, error) {
	var resp postResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	switch {
	case len(resp.Items) > 0:
		var out []Media
		for _, it := range resp.Items {
			out = append(out, fromItem(it)...)
		}
		return out, nil
	case resp.GraphQL.ShortcodeMedia != nil:
		return fromGraph(*resp.GraphQL.ShortcodeMedia), nil
	}
	return nil, errUnknownShape
}

func fromItem(it apiItem) []Media {
	if len(it.CarouselMedia) > 0 {
		var out []Media
		for _, child := range it.CarouselMedia {
			out = append(out, fromItem(child)...)
		}
		return out
	}

	m := Media{
		VideoURL: largest(it.VideoVersions),
		ImageURL: largest(it.ImageVersions2.Candidates),
	}
	if m.VideoURL == "" && m.ImageURL == "" {
		return nil
	}
	return []Media{m}
}

func fromGraph(n graphNode) []Media {
	if len(n.Children.Edges) > 0 {
		var out []Media
		for _, e := range n.Children.Edges {
			out = append(out, fromGraph(e.Node)...)
		}
		return out
	}

	m := Media{ImageURL: n.DisplayURL}
	if n.IsVideo {
		m.VideoURL = n.VideoURL
	}
	if m.VideoURL == "" && m.ImageURL == "" {
		return nil
	}
	return []Media{m}
}

// largest picks the candidate with the most pixels
func largest(cands []candidate) string {
	var best candidate
	for _, c := range cands {
		if c.URL == "" {
			continue
		}
		if best.URL == "" || c.Width*c.Height > best.Width*best.Height {
			best = c
		}
	}
	return best.URL
}
