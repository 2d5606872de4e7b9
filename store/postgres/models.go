package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/id"
	"github.com/certvine/certflow/instance"
)

// instanceModel is the row shape of certflow_instances. Payload and
// error log are stored as JSONB arrays, preserving insertion order.
type instanceModel struct {
	ID               string
	OwnerRef         string
	CertificationRef string
	Parameters       []byte
	Stage            string
	Status           string
	Payload          []byte
	Attempt          int
	Version          int
	ErrorLog         []byte
	SuspendedAt      *time.Time
	ResumedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func toInstanceModel(inst *instance.Instance) (*instanceModel, error) {
	payload, err := json.Marshal(inst.Payload)
	if err != nil {
		return nil, fmt.Errorf("certflow/postgres: encode payload: %w", err)
	}
	errorLog, err := json.Marshal(inst.ErrorLog)
	if err != nil {
		return nil, fmt.Errorf("certflow/postgres: encode error log: %w", err)
	}
	var params []byte
	if inst.Parameters != nil {
		if params, err = json.Marshal(inst.Parameters); err != nil {
			return nil, fmt.Errorf("certflow/postgres: encode parameters: %w", err)
		}
	}
	return &instanceModel{
		ID:               inst.ID.String(),
		OwnerRef:         inst.OwnerRef,
		CertificationRef: inst.CertificationRef,
		Parameters:       params,
		Stage:            string(inst.Stage),
		Status:           string(inst.Status),
		Payload:          payload,
		Attempt:          inst.Attempt,
		Version:          inst.Version,
		ErrorLog:         errorLog,
		SuspendedAt:      inst.SuspendedAt,
		ResumedAt:        inst.ResumedAt,
		CompletedAt:      inst.CompletedAt,
		CreatedAt:        inst.CreatedAt,
		UpdatedAt:        inst.UpdatedAt,
	}, nil
}

func fromInstanceModel(m *instanceModel) (*instance.Instance, error) {
	parsedID, err := id.ParseInstanceID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("certflow/postgres: parse instance id %q: %w", m.ID, err)
	}

	inst := &instance.Instance{
		Entity: certflow.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               parsedID,
		OwnerRef:         m.OwnerRef,
		CertificationRef: m.CertificationRef,
		Stage:            instance.Stage(m.Stage),
		Status:           instance.Status(m.Status),
		Attempt:          m.Attempt,
		Version:          m.Version,
		SuspendedAt:      m.SuspendedAt,
		ResumedAt:        m.ResumedAt,
		CompletedAt:      m.CompletedAt,
	}

	if len(m.Parameters) > 0 {
		if err := json.Unmarshal(m.Parameters, &inst.Parameters); err != nil {
			return nil, fmt.Errorf("certflow/postgres: decode parameters: %w", err)
		}
	}
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &inst.Payload); err != nil {
			return nil, fmt.Errorf("certflow/postgres: decode payload: %w", err)
		}
	}
	if len(m.ErrorLog) > 0 {
		if err := json.Unmarshal(m.ErrorLog, &inst.ErrorLog); err != nil {
			return nil, fmt.Errorf("certflow/postgres: decode error log: %w", err)
		}
	}

	return inst, nil
}
