package model

import "fmt"

// Case is a single patient outcome: the 1-based dose level received, and
// binary toxicity and efficacy indicators.
type Case struct {
	Dose     int `json:"dose"`
	Toxicity int `json:"toxicity"`
	Efficacy int `json:"efficacy"`
}

func (c Case) Validate(numDoses int) error {
	if c.Dose < 1 || c.Dose > numDoses {
		return fmt.Errorf("dose %d out of range 1..%d", c.Dose, numDoses)
	}
	if c.Toxicity != 0 && c.Toxicity != 1 {
		return fmt.Errorf("toxicity outcome must be 0 or 1, got %d", c.Toxicity)
	}
	if c.Efficacy != 0 && c.Efficacy != 1 {
		return fmt.Errorf("efficacy outcome must be 0 or 1, got %d", c.Efficacy)
	}
	return nil
}

// ToxicityCase is the toxicity-only projection of a Case, the shape the
// toxicity collaborator consumes.
type ToxicityCase struct {
	Dose     int `json:"dose"`
	Toxicity int `json:"toxicity"`
}

func (c Case) ToxicityOnly() ToxicityCase {
	return ToxicityCase{Dose: c.Dose, Toxicity: c.Toxicity}
}

// Status is the trial state. Exactly one status holds at any time and
// transitions happen only inside the controller's per-cohort update.
type Status int

const (
	StatusNotStarted Status = iota
	StatusRandomizing
	StatusMaximizing
	StatusCompleted
	StatusStoppedNoAcceptableDose
	StatusStoppedExcessToxicity
	StatusStoppedDeficientEfficacy
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusStoppedNoAcceptableDose, StatusStoppedExcessToxicity, StatusStoppedDeficientEfficacy:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusRandomizing:
		return "randomizing"
	case StatusMaximizing:
		return "maximizing"
	case StatusCompleted:
		return "completed"
	case StatusStoppedNoAcceptableDose:
		return "stopped_no_acceptable_dose"
	case StatusStoppedExcessToxicity:
		return "stopped_excess_toxicity"
	case StatusStoppedDeficientEfficacy:
		return "stopped_deficient_efficacy"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the numeric trial-outcome code reported by the simulation
// harness. The values mirror the historical taxonomy and are stable.
type Outcome int

const (
	OutcomeNotStarted        Outcome = 0
	OutcomeCompleted         Outcome = 100
	OutcomeNoAcceptableDose  Outcome = -1
	OutcomeExcessToxicity    Outcome = -3
	OutcomeDeficientEfficacy Outcome = -4
)

func OutcomeForStatus(s Status) Outcome {
	switch s {
	case StatusCompleted:
		return OutcomeCompleted
	case StatusStoppedNoAcceptableDose:
		return OutcomeNoAcceptableDose
	case StatusStoppedExcessToxicity:
		return OutcomeExcessToxicity
	case StatusStoppedDeficientEfficacy:
		return OutcomeDeficientEfficacy
	default:
		return OutcomeNotStarted
	}
}

// VersionedRecord tags persisted records so incompatible payloads are
// rejected instead of silently misread.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// PatientRecord is one row of a simulated-trial trace.
type PatientRecord struct {
	Patient     int     `json:"patient"`
	Dose        int     `json:"dose"`
	Toxicity    int     `json:"toxicity"`
	Efficacy    int     `json:"efficacy"`
	ModelChoice int     `json:"model_choice"`
	Phase       string  `json:"phase"`
	ThetaHat    float64 `json:"theta_hat"`
	BetaHat     float64 `json:"beta_hat"`
}

// TrialRunRecord summarizes one simulated trial for persistence.
type TrialRunRecord struct {
	VersionedRecord
	RunID                  string  `json:"run_id"`
	CreatedAtUTC           string  `json:"created_at_utc"`
	Design                 string  `json:"design,omitempty"`
	Seed                   int64   `json:"seed"`
	MaxSize                int     `json:"max_size"`
	RandomizationStageSize int     `json:"randomization_stage_size"`
	Patients               int     `json:"patients"`
	FinalDose              int     `json:"final_dose"`
	FinalModel             int     `json:"final_model"`
	Outcome                Outcome `json:"outcome"`
	FinalThetaHat          float64 `json:"final_theta_hat"`
	FinalBetaHat           float64 `json:"final_beta_hat"`
}
