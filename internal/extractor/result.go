package extractor

// Parties identifies the contracting parties.
type Parties struct {
	PartyOne          string   `json:"party_one,omitempty"`
	PartyTwo          string   `json:"party_two,omitempty"`
	AdditionalParties []string `json:"additional_parties,omitempty"`
}

// Dates holds the contract's date information as free-form date strings
// (ISO YYYY-MM-DD where the model can determine it).
type Dates struct {
	EffectiveDate   string `json:"effective_date,omitempty"`
	TerminationDate string `json:"termination_date,omitempty"`
	TermLength      string `json:"term_length,omitempty"`
}

// Clauses holds the extracted clause text, all optional.
type Clauses struct {
	GoverningLaw          string `json:"governing_law,omitempty"`
	Termination           string `json:"termination,omitempty"`
	Confidentiality       string `json:"confidentiality,omitempty"`
	Indemnification       string `json:"indemnification,omitempty"`
	LimitationOfLiability string `json:"limitation_of_liability,omitempty"`
	DisputeResolution     string `json:"dispute_resolution,omitempty"`
	PaymentTerms          string `json:"payment_terms,omitempty"`
	IntellectualProperty  string `json:"intellectual_property,omitempty"`
}

// Result is a schema-validated extraction from contract text.
type Result struct {
	Parties    Parties `json:"parties"`
	Dates      Dates   `json:"dates"`
	Clauses    Clauses `json:"clauses"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary,omitempty"`
}
