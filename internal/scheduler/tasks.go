package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskAutomationProcess runs one due automation through the processor.
const TaskAutomationProcess = "automations.process"

type AutomationProcessPayload struct {
	AutomationID string `json:"automationId"`
	AccountID    string `json:"accountId"`
}

func NewAutomationProcessTask(payload AutomationProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAutomationProcess, data), nil
}

func ParseAutomationProcessPayload(task *asynq.Task) (AutomationProcessPayload, error) {
	var payload AutomationProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AutomationProcessPayload{}, err
	}
	return payload, nil
}

// IDs parses both identifiers of the payload.
func (p AutomationProcessPayload) IDs() (accountID, automationID uuid.UUID, err error) {
	accountID, err = uuid.Parse(p.AccountID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid account id %q: %w", p.AccountID, err)
	}
	automationID, err = uuid.Parse(p.AutomationID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid automation id %q: %w", p.AutomationID, err)
	}
	return accountID, automationID, nil
}
