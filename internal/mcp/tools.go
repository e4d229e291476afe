package mcp

// SearchRequirementsInput is the input schema for search_requirements.
type SearchRequirementsInput struct {
	Query    string `json:"query" jsonschema:"the search query to execute"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Category string `json:"category,omitempty" jsonschema:"filter by category: functional, non-functional, business-rule, other"`
}

// SearchRequirementsOutput is the output schema for search_requirements.
type SearchRequirementsOutput struct {
	Results []RequirementResult `json:"results" jsonschema:"ranked requirement matches"`
}

// RequirementResult is one requirement hit with its score breakdown.
type RequirementResult struct {
	ID            string       `json:"id" jsonschema:"requirement identifier"`
	Name          string       `json:"name,omitempty" jsonschema:"requirement name or title"`
	Text          string       `json:"text" jsonschema:"requirement text"`
	Category      string       `json:"category" jsonschema:"assigned category"`
	Score         float64      `json:"score" jsonschema:"unified relevance score between 0 and 1"`
	SemanticScore float64      `json:"semantic_score" jsonschema:"vector similarity component"`
	KeywordScore  float64      `json:"keyword_score" jsonschema:"keyword relevance component"`
	RuleScore     float64      `json:"rule_score,omitempty" jsonschema:"business-rule match component"`
	MatchedTerms  []string     `json:"matched_terms,omitempty" jsonschema:"query terms that matched"`
	MatchedRules  []RuleOutput `json:"matched_rules,omitempty" jsonschema:"business rules that matched a rule-focused query"`
}

// SearchBusinessRulesInput is the input schema for search_business_rules.
type SearchBusinessRulesInput struct {
	Query string `json:"query" jsonschema:"the rule search query to execute"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchBusinessRulesOutput is the output schema for search_business_rules.
type SearchBusinessRulesOutput struct {
	Results []RuleMatchOutput `json:"results" jsonschema:"ranked business-rule matches"`
}

// RuleMatchOutput pairs a matched rule with its parent requirement.
type RuleMatchOutput struct {
	RequirementID string     `json:"requirement_id" jsonschema:"parent requirement identifier"`
	Rule          RuleOutput `json:"rule" jsonschema:"the matched business rule"`
	Score         float64    `json:"score" jsonschema:"match score between 0 and 1"`
}

// RuleOutput is a business rule in tool responses.
type RuleOutput struct {
	Kind       string  `json:"kind" jsonschema:"rule kind: conditional, threshold, or interdiction"`
	Condition  string  `json:"condition" jsonschema:"the triggering condition text"`
	Action     string  `json:"action,omitempty" jsonschema:"the consequence text, empty for prohibitions"`
	Confidence float64 `json:"confidence" jsonschema:"extraction confidence between 0 and 1"`
}

// ExtractEntitiesInput is the input schema for extract_entities.
type ExtractEntitiesInput struct {
	Text string `json:"text" jsonschema:"the requirement text to analyze"`
}

// ExtractEntitiesOutput is the output schema for extract_entities.
type ExtractEntitiesOutput struct {
	Entities []EntityOutput `json:"entities" jsonschema:"detected named entities"`
	Rules    []RuleOutput   `json:"rules" jsonschema:"extracted business rules"`
}

// EntityOutput is a detected entity in tool responses.
type EntityOutput struct {
	Text  string `json:"text" jsonschema:"the entity text"`
	Type  string `json:"type" jsonschema:"entity type: organization, quantity, date, or condition-marker"`
	Start int    `json:"start" jsonschema:"start character offset"`
	End   int    `json:"end" jsonschema:"end character offset"`
}

// ClassifyTextInput is the input schema for classify_text.
type ClassifyTextInput struct {
	Text string `json:"text" jsonschema:"the requirement text to classify"`
}

// ClassifyTextOutput is the output schema for classify_text.
type ClassifyTextOutput struct {
	Category   string       `json:"category" jsonschema:"assigned category: functional, non-functional, business-rule, or other"`
	Confidence float64      `json:"confidence" jsonschema:"classification confidence between 0 and 1"`
	Rules      []RuleOutput `json:"rules,omitempty" jsonschema:"business rules found in the text"`
}

// IngestFileInput is the input schema for ingest_file.
type IngestFileInput struct {
	Path string `json:"path" jsonschema:"path to a .csv, .json, .txt, or .md requirements file"`
}

// IngestFileOutput is the output schema for ingest_file.
type IngestFileOutput struct {
	RunID   string `json:"run_id" jsonschema:"ingestion run identifier"`
	Total   int    `json:"total" jsonschema:"records found in the file"`
	Indexed int    `json:"indexed" jsonschema:"records enriched and indexed"`
	Skipped int    `json:"skipped" jsonschema:"records skipped as empty or malformed"`
}

// IndexStatusInput is the input schema for index_status (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput is the output schema for index_status.
type IndexStatusOutput struct {
	Requirements int           `json:"requirements" jsonschema:"number of indexed requirements"`
	Rules        int           `json:"rules" jsonschema:"number of stored business rules"`
	Vectors      int           `json:"vectors" jsonschema:"number of stored embeddings"`
	Embeddings   EmbeddingInfo `json:"embeddings" jsonschema:"active embedding configuration"`
	Version      string        `json:"version" jsonschema:"server version"`
}

// EmbeddingInfo reports the active embedder so clients can judge semantic
// quality.
type EmbeddingInfo struct {
	Model      string `json:"model" jsonschema:"active embedding model"`
	Dimensions int    `json:"dimensions" jsonschema:"embedding dimension"`
	Available  bool   `json:"available" jsonschema:"whether the embedder is reachable"`
	Quality    string `json:"quality" jsonschema:"semantic quality: high for model-backed, low for static"`
}
