package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSearchJob = "search.job"

const TaskDiscoveryBackfill = "discovery.backfill"

type SearchJobPayload struct {
	JobID  string `json:"jobId"`
	UserID string `json:"userId"`
}

type DiscoveryBackfillPayload struct {
	Query   string   `json:"query"`
	Limit   int      `json:"limit"`
	Exclude []string `json:"exclude,omitempty"`
}

func NewSearchJobTask(payload SearchJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSearchJob, data), nil
}

func ParseSearchJobPayload(task *asynq.Task) (SearchJobPayload, error) {
	var payload SearchJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SearchJobPayload{}, err
	}
	return payload, nil
}

func NewDiscoveryBackfillTask(payload DiscoveryBackfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDiscoveryBackfill, data), nil
}

func ParseDiscoveryBackfillPayload(task *asynq.Task) (DiscoveryBackfillPayload, error) {
	var payload DiscoveryBackfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DiscoveryBackfillPayload{}, err
	}
	return payload, nil
}
