package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/pulse/internal/models"
)

const reportSchema = `{
  "title": "string, H1 headline that answers the reader's search intent",
  "ticker": "string, exchange ticker",
  "price": number,
  "currency": "KRW | USD",
  "summary": "string, about 150 characters, usable as a meta description",
  "sentimentScore": number (0-100, 70 and above is positive),
  "fearGreedIndex": number (0-100, 0 extreme fear, 100 extreme greed),
  "targetPrice": number,
  "investmentRating": "Strong Buy | Buy | Hold | Sell",
  "reasons": ["string, data-backed reason", "..."],
  "macroContext": "string, macro environment and sector linkage",
  "valuationCheck": "string, valuation diagnosis from PER, PBR and similar multiples",
  "technicalAnalysis": {
    "support": number,
    "resistance": number,
    "trend": "up | down | flat",
    "details": "string, interpretation of the chart and indicators"
  },
  "peers": [{"name": "string", "symbol": "string", "price": number, "performance": "string", "diffReason": "string"}],
  "fullContent": "string, markdown article of at least 1500 characters using H2 and H3 headings",
  "faqs": [{"question": "string", "answer": "string"}]
}`

const researchSchema = `{
  "ticker": "string",
  "name": "string",
  "price": number,
  "currency": "KRW | USD",
  "changePercent": number,
  "targetPrice": number,
  "support": number,
  "resistance": number,
  "trend": "up | down | flat",
  "sentimentScore": number (0-100),
  "fearGreedIndex": number (0-100),
  "investmentRating": "Strong Buy | Buy | Hold | Sell",
  "catalysts": ["string, one line per news item or catalyst with its date"],
  "peers": [{"name": "string", "symbol": "string", "price": number, "performance": "string", "diffReason": "string"}]
}`

// PromptInput carries the per-call variables of a prompt.
type PromptInput struct {
	Market   models.Market
	Excluded []string
	// Ticker pins the subject; empty lets the model choose.
	Ticker     string
	Prefetched *models.MarketData
	Now        time.Time
}

// PromptBuilder renders the system instruction and per-call content.
type PromptBuilder struct {
	model    string
	language string
}

// NewPromptBuilder creates a builder targeting model and writing in language.
func NewPromptBuilder(model, language string) *PromptBuilder {
	if strings.TrimSpace(language) == "" {
		language = "Korean"
	}
	return &PromptBuilder{model: model, language: language}
}

// Language returns the article language.
func (b *PromptBuilder) Language() string {
	return b.language
}

// SystemInstruction is the fixed role and schema instruction for report writing.
func (b *PromptBuilder) SystemInstruction() string {
	var sb strings.Builder
	sb.WriteString("# Role\n")
	sb.WriteString("You are a global equity analyst and technical SEO strategist writing in the style of Seeking Alpha and The Motley Fool.\n\n")
	sb.WriteString("# Mission\n")
	sb.WriteString("Produce an in-depth analysis report that search engines classify as authoritative content and that can win the featured snippet for \"{stock} outlook\" and \"why is {stock} rising\" queries.\n\n")
	sb.WriteString("# Analysis framework\n")
	sb.WriteString("1. Macro context: rates, dollar index, oil and how the sector correlates with them.\n")
	sb.WriteString("2. Growth catalysts: new products, M&A, earnings surprises and whether they are sustainable.\n")
	sb.WriteString("3. Peer comparison: valuation (PER, EV/EBITDA) and technology gap against the peer group.\n")
	sb.WriteString("4. Technical indicators: support, resistance, golden cross, RSI overbought conditions.\n")
	sb.WriteString("5. Risk assessment: downside risks such as regulation, competition and input costs.\n\n")
	sb.WriteString("# Writing rules\n")
	fmt.Fprintf(&sb, "- Write every narrative field in %s.\n", b.language)
	sb.WriteString("- Keep sentences short and explain jargon for retail readers.\n")
	sb.WriteString("- Build the FAQ from conversational long-tail questions people actually search for.\n\n")
	sb.WriteString("# Output schema\n")
	sb.WriteString("Respond with ONLY a single JSON object matching this schema. No markdown fences, no commentary before or after it.\n")
	sb.WriteString(reportSchema)
	sb.WriteString("\n")
	return sb.String()
}

// ResearchInstruction is the system instruction of the research pass.
func (b *PromptBuilder) ResearchInstruction() string {
	var sb strings.Builder
	sb.WriteString("# Role\n")
	sb.WriteString("You are an equity research assistant. Select one stock and collect verifiable facts about it using web search.\n\n")
	sb.WriteString("# Output schema\n")
	sb.WriteString("Respond with ONLY a single JSON object matching this schema. No markdown fences, no commentary.\n")
	sb.WriteString(researchSchema)
	sb.WriteString("\n")
	return sb.String()
}

func marketDirective(market models.Market) string {
	if market == models.MarketKR {
		return "Select one stock from the Korean KOSPI or KOSDAQ market whose trading volume is surging right now or that is leading a market theme."
	}
	return "Select one volatile stock from the US NASDAQ or NYSE market that global investors are paying close attention to right now."
}

func exclusionLine(excluded []string) string {
	list := "none"
	if len(excluded) > 0 {
		list = strings.Join(excluded, ", ")
	}
	return fmt.Sprintf("[Recently analyzed tickers (excluded)]: %s.\nNever analyze a ticker from this list again.", list)
}

func subjectLines(in PromptInput) string {
	if in.Ticker == "" {
		return marketDirective(in.Market) + "\n\n" + exclusionLine(in.Excluded)
	}
	return fmt.Sprintf("Analyze the stock with ticker %s on the %s market.", in.Ticker, in.Market)
}

// prefetchedBlock renders market data fetched before the call. Empty when
// nothing usable was fetched.
func prefetchedBlock(md *models.MarketData) string {
	if md == nil || (!md.HasPrice() && len(md.History) == 0) {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("[Market data from the exchange feed, treat as authoritative]\n")
	if s := md.Snapshot; s != nil && s.Price > 0 {
		fmt.Fprintf(&sb, "- symbol: %s\n", md.Symbol)
		fmt.Fprintf(&sb, "- price: %s %s\n", formatNumber(s.Price), s.Currency)
		fmt.Fprintf(&sb, "- change: %s%%\n", formatNumber(s.ChangePercent))
		if s.MarketCap > 0 {
			fmt.Fprintf(&sb, "- market cap: %s\n", formatNumber(s.MarketCap))
		}
		if s.Volume > 0 {
			fmt.Fprintf(&sb, "- volume: %d\n", s.Volume)
		}
	}
	if n := len(md.History); n > 0 {
		first, last := md.History[0], md.History[n-1]
		fmt.Fprintf(&sb, "- hourly closes: %d points from %s to %s\n", n, formatNumber(first.Price), formatNumber(last.Price))
	}
	return sb.String()
}

func formatNumber(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// SinglePass builds the combined select, analyze and write request.
func (b *PromptBuilder) SinglePass(in PromptInput) models.CompletionRequest {
	var sb strings.Builder
	sb.WriteString(subjectLines(in))
	sb.WriteString("\n\n")
	if block := prefetchedBlock(in.Prefetched); block != "" {
		sb.WriteString(block)
		sb.WriteString("\n")
	}
	if !in.Now.IsZero() {
		fmt.Fprintf(&sb, "Current time: %s\n\n", in.Now.Format(time.RFC3339))
	}
	sb.WriteString("Use the Google Search tool to:\n")
	sb.WriteString("1. Confirm the current price and the change against the previous close.\n")
	sb.WriteString("2. Analyze at least three of the most influential news articles published in the last 24 hours.\n")
	sb.WriteString("3. Collect the latest analyst target price consensus.\n\n")
	sb.WriteString("Then write the report as JSON following the system instruction.")

	return models.CompletionRequest{
		Model:             b.model,
		SystemInstruction: b.SystemInstruction(),
		Prompt:            sb.String(),
		WebSearch:         true,
	}
}

// ResearchPass builds pass 1 of the two-pass variant: choose the subject and
// gather facts with the search tool.
func (b *PromptBuilder) ResearchPass(in PromptInput) models.CompletionRequest {
	var sb strings.Builder
	sb.WriteString(subjectLines(in))
	sb.WriteString("\n\n")
	if block := prefetchedBlock(in.Prefetched); block != "" {
		sb.WriteString(block)
		sb.WriteString("\n")
	}
	if !in.Now.IsZero() {
		fmt.Fprintf(&sb, "Current time: %s\n\n", in.Now.Format(time.RFC3339))
	}
	sb.WriteString("Use the Google Search tool to collect the current price, the latest news catalysts, analyst targets, chart levels and three peers. ")
	sb.WriteString("Return only the facts JSON.")

	return models.CompletionRequest{
		Model:             b.model,
		SystemInstruction: b.ResearchInstruction(),
		Prompt:            sb.String(),
		WebSearch:         true,
	}
}

// WritingPass builds pass 2: the long-form article from the research facts,
// which are carried verbatim. No search tool is attached so the provider can
// enforce a JSON reply.
func (b *PromptBuilder) WritingPass(in PromptInput, factsJSON string) models.CompletionRequest {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write the full analysis report for the %s market stock described by the research facts below.\n\n", in.Market)
	sb.WriteString("[Research facts]\n")
	sb.WriteString(factsJSON)
	sb.WriteString("\n\n")
	if block := prefetchedBlock(in.Prefetched); block != "" {
		sb.WriteString(block)
		sb.WriteString("\n")
	}
	sb.WriteString("Use only these facts for numbers. Follow the system instruction schema exactly.")

	return models.CompletionRequest{
		Model:             b.model,
		SystemInstruction: b.SystemInstruction(),
		Prompt:            sb.String(),
		JSONResponse:      true,
	}
}
