package storage

import (
	"encoding/json"
	"errors"

	"adaptrial/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.TrialRunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.TrialRunRecord, error) {
	var run model.TrialRunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.TrialRunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.TrialRunRecord{}, err
	}
	return run, nil
}

func EncodeTrace(trace []model.PatientRecord) ([]byte, error) {
	return json.Marshal(trace)
}

func DecodeTrace(data []byte) ([]model.PatientRecord, error) {
	var trace []model.PatientRecord
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, err
	}
	return trace, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
