// Package classifier assigns industry labels to documents and groups them by industry.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
)

// Document is a report offered for classification, with the text used for evaluation
type Document struct {
	ID      string
	Title   string
	Text    string
	Excerpt string
}

// IndustryGroup collects every document labelled with one industry
type IndustryGroup struct {
	Industry            string
	Texts               []string
	Excerpts            []string
	ReferencedReportIDs []string
}

// Classifier restricts generated labels to a closed vocabulary
type Classifier struct {
	backend    interfaces.IndustryClassifier
	vocabulary *models.Vocabulary
	logger     arbor.ILogger
}

// NewClassifier creates a classifier over the given vocabulary
func NewClassifier(backend interfaces.IndustryClassifier, vocabulary *models.Vocabulary, logger arbor.ILogger) *Classifier {
	return &Classifier{
		backend:    backend,
		vocabulary: vocabulary,
		logger:     logger,
	}
}

// Classify labels each document. Every input id appears exactly once in the result,
// possibly with no industries. An unparsable response leaves every document unlabelled.
func (c *Classifier) Classify(ctx context.Context, docs []Document) ([]interfaces.Classification, error) {
	result := make([]interfaces.Classification, len(docs))
	index := make(map[string]int, len(docs))
	inputs := make([]interfaces.ClassifyInput, 0, len(docs))
	for i, d := range docs {
		result[i] = interfaces.Classification{ID: d.ID, Industries: []string{}}
		index[d.ID] = i
		inputs = append(inputs, interfaces.ClassifyInput{ID: d.ID, Title: d.Title, Excerpt: d.Excerpt})
	}
	if len(docs) == 0 {
		return result, nil
	}

	raw, err := c.backend.Classify(ctx, inputs, c.vocabulary.Labels())
	if errors.Is(err, interfaces.ErrUnparseableResponse) {
		c.logger.Warn().
			Int("documents", len(docs)).
			Err(err).
			Msg("Classification response unparsable, documents left unlabelled")
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to classify documents: %w", err)
	}

	for _, cl := range raw {
		i, ok := index[cl.ID]
		if !ok {
			c.logger.Warn().Str("doc_id", cl.ID).Msg("Classification returned unknown document id")
			continue
		}

		seen := make(map[string]struct{}, len(result[i].Industries))
		for _, existing := range result[i].Industries {
			seen[existing] = struct{}{}
		}
		for _, label := range cl.Industries {
			canonical, ok := c.vocabulary.Canonical(label)
			if !ok {
				c.logger.Warn().
					Str("doc_id", cl.ID).
					Str("label", label).
					Msg("Dropping industry label outside vocabulary")
				continue
			}
			if _, dup := seen[canonical]; dup {
				continue
			}
			seen[canonical] = struct{}{}
			result[i].Industries = append(result[i].Industries, canonical)
		}
	}

	return result, nil
}

// GroupByIndustry collects documents under every industry they were labelled with
func GroupByIndustry(classified []interfaces.Classification, docs []Document) map[string]*IndustryGroup {
	byID := make(map[string]Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	groups := make(map[string]*IndustryGroup)
	for _, cl := range classified {
		doc, ok := byID[cl.ID]
		if !ok {
			continue
		}
		for _, industry := range cl.Industries {
			group, ok := groups[industry]
			if !ok {
				group = &IndustryGroup{Industry: industry}
				groups[industry] = group
			}
			group.Texts = append(group.Texts, doc.Text)
			group.Excerpts = append(group.Excerpts, doc.Excerpt)
			group.ReferencedReportIDs = append(group.ReferencedReportIDs, doc.ID)
		}
	}
	return groups
}

// SortedIndustries returns group keys in a stable order
func SortedIndustries(groups map[string]*IndustryGroup) []string {
	industries := make([]string, 0, len(groups))
	for industry := range groups {
		industries = append(industries, industry)
	}
	sort.Slice(industries, func(i, j int) bool {
		return strings.ToLower(industries[i]) < strings.ToLower(industries[j])
	})
	return industries
}
