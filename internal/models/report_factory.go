package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// flexFloat64 accepts a JSON number, a numeric string ("$1,234.5", "12%")
// or null.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.NewReplacer("$", "", ",", "", "%", "", "₩", "", " ", "").Replace(s)
		if s == "" || strings.EqualFold(s, "N/A") {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as number", s)
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexString(num.String())
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into string", string(data))
}

type rawReport struct {
	Ticker            flexString   `json:"ticker"`
	Title             string       `json:"title"`
	Price             flexFloat64  `json:"price"`
	Currency          string       `json:"currency"`
	Summary           string       `json:"summary"`
	SentimentScore    flexFloat64  `json:"sentimentScore"`
	FearGreedIndex    flexFloat64  `json:"fearGreedIndex"`
	TargetPrice       flexFloat64  `json:"targetPrice"`
	InvestmentRating  string       `json:"investmentRating"`
	Reasons           []flexString `json:"reasons"`
	MacroContext      string       `json:"macroContext"`
	ValuationCheck    string       `json:"valuationCheck"`
	TechnicalAnalysis *struct {
		Support    flexFloat64 `json:"support"`
		Resistance flexFloat64 `json:"resistance"`
		Trend      string      `json:"trend"`
		Details    string      `json:"details"`
	} `json:"technicalAnalysis"`
	Peers []struct {
		Name        string      `json:"name"`
		Symbol      flexString  `json:"symbol"`
		Price       flexFloat64 `json:"price"`
		Performance flexString  `json:"performance"`
		DiffReason  string      `json:"diffReason"`
	} `json:"peers"`
	FullContent string `json:"fullContent"`
	FAQs        []FAQ  `json:"faqs"`
}

// NewAnalysisReportFromMap builds a validated report from the generic object
// recovered from a model reply. Identity and timestamp are left empty for the
// caller to assign. Errors wrap ErrInvalidReport.
func NewAnalysisReportFromMap(obj map[string]any, market Market) (*AnalysisReport, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: nil object", ErrInvalidReport)
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	var raw rawReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	trend := TrendFlat
	ta := TechnicalAnalysis{Trend: TrendFlat}
	if raw.TechnicalAnalysis != nil {
		trend, err = ParseTrend(raw.TechnicalAnalysis.Trend)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
		}
		ta = TechnicalAnalysis{
			Support:    float64(raw.TechnicalAnalysis.Support),
			Resistance: float64(raw.TechnicalAnalysis.Resistance),
			Trend:      trend,
			Details:    strings.TrimSpace(raw.TechnicalAnalysis.Details),
		}
	}

	rating, err := ParseRating(raw.InvestmentRating)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if currency == "" {
		currency = market.Currency()
	}

	report := &AnalysisReport{
		Market:            market,
		Ticker:            strings.ToUpper(strings.TrimSpace(string(raw.Ticker))),
		Price:             float64(raw.Price),
		Currency:          currency,
		TargetPrice:       float64(raw.TargetPrice),
		TechnicalAnalysis: ta,
		Title:             strings.TrimSpace(raw.Title),
		Summary:           strings.TrimSpace(raw.Summary),
		Reasons:           make([]string, 0, len(raw.Reasons)),
		MacroContext:      strings.TrimSpace(raw.MacroContext),
		ValuationCheck:    strings.TrimSpace(raw.ValuationCheck),
		FullContent:       strings.TrimSpace(raw.FullContent),
		FAQs:              make([]FAQ, 0, len(raw.FAQs)),
		Peers:             make([]Peer, 0, len(raw.Peers)),
		SentimentScore:    ClampScore(float64(raw.SentimentScore)),
		FearGreedIndex:    ClampScore(float64(raw.FearGreedIndex)),
		InvestmentRating:  rating,
	}

	for _, r := range raw.Reasons {
		if s := strings.TrimSpace(string(r)); s != "" {
			report.Reasons = append(report.Reasons, s)
		}
	}
	for _, f := range raw.FAQs {
		q, a := strings.TrimSpace(f.Question), strings.TrimSpace(f.Answer)
		if q == "" || a == "" {
			continue
		}
		report.FAQs = append(report.FAQs, FAQ{Question: q, Answer: a})
	}
	for _, p := range raw.Peers {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		report.Peers = append(report.Peers, Peer{
			Name:        strings.TrimSpace(p.Name),
			Symbol:      strings.TrimSpace(string(p.Symbol)),
			Price:       float64(p.Price),
			Performance: string(p.Performance),
			DiffReason:  p.DiffReason,
		})
	}

	if err := report.Validate(); err != nil {
		return nil, err
	}
	return report, nil
}

// Validate checks the report against its schema tags.
func (r *AnalysisReport) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidReport, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return nil
}

// ParseTrend maps the trend vocabulary the model uses onto Trend.
// An empty value defaults to flat.
func ParseTrend(s string) (Trend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "flat", "횡보", "sideways", "neutral", "range", "rangebound", "보합":
		return TrendFlat, nil
	case "up", "상승", "bullish", "uptrend", "rising":
		return TrendUp, nil
	case "down", "하락", "bearish", "downtrend", "falling":
		return TrendDown, nil
	}
	return "", fmt.Errorf("unknown trend %q", s)
}

// ParseRating maps rating spellings ("Strong Buy", "strong_buy", "Outperform")
// onto Rating. An empty value defaults to Hold.
func ParseRating(s string) (Rating, error) {
	key := strings.ToLower(s)
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	switch key {
	case "strongbuy", "적극매수":
		return RatingStrongBuy, nil
	case "buy", "outperform", "overweight", "accumulate", "매수":
		return RatingBuy, nil
	case "", "hold", "neutral", "marketperform", "중립", "보유":
		return RatingHold, nil
	case "sell", "strongsell", "underperform", "underweight", "reduce", "매도":
		return RatingSell, nil
	}
	return "", fmt.Errorf("unknown investment rating %q", s)
}

// ClampScore bounds a 0-100 score. NaN becomes 0.
func ClampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

type rawFacts struct {
	Ticker           flexString   `json:"ticker"`
	Name             string       `json:"name"`
	Price            flexFloat64  `json:"price"`
	Currency         string       `json:"currency"`
	ChangePercent    flexFloat64  `json:"changePercent"`
	TargetPrice      flexFloat64  `json:"targetPrice"`
	Support          flexFloat64  `json:"support"`
	Resistance       flexFloat64  `json:"resistance"`
	Trend            string       `json:"trend"`
	SentimentScore   flexFloat64  `json:"sentimentScore"`
	FearGreedIndex   flexFloat64  `json:"fearGreedIndex"`
	InvestmentRating string       `json:"investmentRating"`
	Catalysts        []flexString `json:"catalysts"`
}

// NewResearchFactsFromMap reads the research pass output. Only the ticker is
// required; the writing pass receives the original object verbatim.
func NewResearchFactsFromMap(obj map[string]any) (*ResearchFacts, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: nil object", ErrInvalidReport)
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	var raw rawFacts
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	ticker := strings.ToUpper(strings.TrimSpace(string(raw.Ticker)))
	if ticker == "" {
		return nil, fmt.Errorf("%w: research facts missing ticker", ErrInvalidReport)
	}

	facts := &ResearchFacts{
		Ticker:           ticker,
		Name:             strings.TrimSpace(raw.Name),
		Price:            float64(raw.Price),
		Currency:         strings.ToUpper(strings.TrimSpace(raw.Currency)),
		ChangePercent:    float64(raw.ChangePercent),
		TargetPrice:      float64(raw.TargetPrice),
		Support:          float64(raw.Support),
		Resistance:       float64(raw.Resistance),
		Trend:            raw.Trend,
		SentimentScore:   ClampScore(float64(raw.SentimentScore)),
		FearGreedIndex:   ClampScore(float64(raw.FearGreedIndex)),
		InvestmentRating: raw.InvestmentRating,
	}
	for _, c := range raw.Catalysts {
		if s := strings.TrimSpace(string(c)); s != "" {
			facts.Catalysts = append(facts.Catalysts, s)
		}
	}
	return facts, nil
}
