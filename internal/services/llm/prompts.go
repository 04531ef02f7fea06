package llm

import (
	"fmt"
	"strings"

	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
)

const (
	// markdownSystem frames summarisation and merge calls
	markdownSystem = `You are an editor condensing financial research reports into structured Markdown.
You preserve facts and figures exactly and never add interpretation.
Reply with the Markdown only: no code fences, no preamble, no closing remarks.`

	// jsonSystem frames every call whose reply is decoded as JSON
	jsonSystem = `You are a financial research analyst feeding an automated pipeline.
Reply with exactly one valid JSON object in the shape the user describes.
Do not wrap it in code fences and do not add any text before or after it.`
)

func chunkSummaryPrompt(chunk interfaces.ChunkContext) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("The attached document is pages %d-%d of %d total pages of a financial research report.\n\n",
		chunk.StartPage, chunk.EndPage, chunk.TotalPages))
	sb.WriteString(`Convert these pages into a structured, hierarchical Markdown summary.

Rules:
- Preserve every fact, figure, forecast and named entity that appears on these pages
- Use headings and nested bullet points that follow the document's own structure
- Do not add interpretation, opinion or information that is not on these pages
- Do not include document metadata such as the title, author, publisher or date
- Do not mention that this is a partial document or refer to page numbers`)
	return sb.String()
}

func mergeSummariesPrompt(partials []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Below are %d partial summaries of consecutive sections of one financial research report, in document order.\n\n", len(partials)))
	for i, p := range partials {
		sb.WriteString(fmt.Sprintf("### Section %d\n\n%s\n\n", i+1, strings.TrimSpace(p)))
	}
	sb.WriteString(`Merge them into a single coherent Markdown document.

Rules:
- Keep the original section order
- Remove repetition, but keep every distinct fact and figure from every section
- Use one consistent heading hierarchy
- Do not add document metadata such as title, author, publisher or date
- Do not add interpretation that is not in the sections`)
	return sb.String()
}

func classifyPrompt(docs []interfaces.ClassifyInput, vocabulary []string) string {
	var sb strings.Builder
	sb.WriteString("Classify each financial report below into zero or more industries.\n\n")
	sb.WriteString("Allowed industries (use these labels exactly, no others):\n")
	for _, label := range vocabulary {
		sb.WriteString("- " + label + "\n")
	}
	sb.WriteString("\nReports:\n\n")
	for _, d := range docs {
		sb.WriteString(fmt.Sprintf("## id: %s\nTitle: %s\n%s\n\n", d.ID, d.Title, strings.TrimSpace(d.Excerpt)))
	}
	sb.WriteString(`JSON shape:
{"classifications": [{"id": "<report id>", "industries": ["<label>", "..."]}]}

Rules:
- Include every report id exactly once
- A report that concerns no listed industry gets an empty list`)
	return sb.String()
}

func evaluatePrompt(industry string, homeMarket string, texts []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are assessing the %s industry from the perspective of an investor in the %s market.\n\n", industry, homeMarket))
	sb.WriteString("Source reports:\n\n")
	for i, t := range texts {
		sb.WriteString(fmt.Sprintf("--- Report %d ---\n%s\n\n", i+1, strings.TrimSpace(t)))
	}
	sb.WriteString(fmt.Sprintf(`Evaluate the outlook for %s listed companies in this industry based only on these reports.
Consider competitive threats from foreign competitors and how developments described abroad would affect %s companies.

JSON shape:
{
  "sentiment": "POSITIVE|NEGATIVE|NEUTRAL",
  "summary": "2-4 sentence summary of the impact on %s investors",
  "key_drivers": ["driver 1", "driver 2"],
  "key_risks": ["risk 1", "risk 2"]
}

Rules:
- Base the evaluation ONLY on the reports provided
- Use NEUTRAL when the evidence is mixed or weak`, homeMarket, homeMarket, homeMarket))
	return sb.String()
}

func scorePrompt(evaluation *models.UnscoredEvaluation, excerpts []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("An analyst produced this evaluation of the %s industry:\n\n", evaluation.IndustryName))
	sb.WriteString(fmt.Sprintf("Sentiment: %s\nSummary: %s\n", evaluation.Sentiment, evaluation.Summary))
	sb.WriteString("Key drivers:\n")
	for _, d := range evaluation.KeyDrivers {
		sb.WriteString("- " + d + "\n")
	}
	sb.WriteString("Key risks:\n")
	for _, r := range evaluation.KeyRisks {
		sb.WriteString("- " + r + "\n")
	}
	sb.WriteString("\nOriginal source excerpts:\n\n")
	for i, e := range excerpts {
		sb.WriteString(fmt.Sprintf("--- Excerpt %d ---\n%s\n\n", i+1, strings.TrimSpace(e)))
	}
	sb.WriteString(`Rate how faithfully the evaluation reflects the source excerpts on a continuous scale from 0.0 (unsupported) to 1.0 (fully supported).

JSON shape: {"confidence": 0.0}`)
	return sb.String()
}

func keywordsPrompt(texts []string) string {
	var sb strings.Builder
	sb.WriteString("Identify the most important recurring themes across these financial research reports.\n\n")
	for i, t := range texts {
		sb.WriteString(fmt.Sprintf("--- Report %d ---\n%s\n\n", i+1, strings.TrimSpace(t)))
	}
	sb.WriteString(`JSON shape:
{"keywords": [{"icon": "<single emoji>", "label": "<2-4 words>", "description": "<one sentence>", "impact": "positive|negative|neutral"}]}

Rules:
- Between 3 and 8 keywords
- impact is the expected effect on equity markets`)
	return sb.String()
}
