// Package extract turns a generateContent response into display text with a numbered list of
// the web sources the answer was grounded on.
package extract

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/integrail/gsearch/pkg/client/dto"
)

const SourcesSeparator = "\n\n---\n**Sources:**\n"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyResult means the service answered but produced no usable text (blocked or empty).
var ErrEmptyResult = errors.New("response was blocked or empty")

type Source struct {
	Title string `json:"title" yaml:"title"`
	URI   string `json:"uri" yaml:"uri"`
}

func (s Source) Valid() bool {
	return s.Title != "" && s.URI != ""
}

type Content struct {
	Text    string   `json:"text" yaml:"text"`
	Sources []Source `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// Parse decodes a raw response payload and extracts its content.
func Parse(raw []byte) (*Content, error) {
	var resp dto.GenerateContentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal generate content response")
	}
	return FromResponse(resp)
}

func FromResponse(resp dto.GenerateContentResponse) (*Content, error) {
	candidate, found := lo.First(resp.Candidates)
	if !found || candidate.Content == nil {
		return nil, ErrEmptyResult
	}
	part, found := lo.First(candidate.Content.Parts)
	if !found || part.Text == "" {
		return nil, ErrEmptyResult
	}
	return &Content{
		Text:    part.Text,
		Sources: sources(candidate.GroundingMetadata),
	}, nil
}

func sources(meta *dto.GroundingMetadata) []Source {
	if meta == nil {
		return nil
	}
	webs := lo.Map(meta.GroundingAttributions, func(a dto.GroundingAttribution, _ int) *dto.WebSource {
		return a.Web
	})
	if len(webs) == 0 {
		webs = lo.Map(meta.GroundingChunks, func(c dto.GroundingChunk, _ int) *dto.WebSource {
			return c.Web
		})
	}
	return lo.FilterMap(webs, func(w *dto.WebSource, _ int) (Source, bool) {
		s := Source{Title: lo.FromPtr(w).Title, URI: lo.FromPtr(w).URI}
		return s, s.Valid()
	})
}

// Format renders the text followed by the sources block, or the bare text when no source is valid.
func (c Content) Format() string {
	valid := lo.Filter(c.Sources, func(s Source, _ int) bool { return s.Valid() })
	if len(valid) == 0 {
		return c.Text
	}
	lines := lo.Map(valid, func(s Source, i int) string {
		return fmt.Sprintf("%d. [%s](%s)", i+1, s.Title, s.URI)
	})
	return c.Text + SourcesSeparator + strings.Join(lines, "\n")
}
