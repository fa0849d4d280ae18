package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskClusterPass = "escalation.cluster_pass"

const TaskSubmissionRun = "submission.run"

type ClusterPassPayload struct {
	Reason string `json:"reason"`
}

type SubmissionRunPayload struct {
	Trigger string `json:"trigger"`
}

func NewClusterPassTask(payload ClusterPassPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskClusterPass, data), nil
}

func ParseClusterPassPayload(task *asynq.Task) (ClusterPassPayload, error) {
	var payload ClusterPassPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ClusterPassPayload{}, err
	}
	return payload, nil
}

func NewSubmissionRunTask(payload SubmissionRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSubmissionRun, data), nil
}

func ParseSubmissionRunPayload(task *asynq.Task) (SubmissionRunPayload, error) {
	var payload SubmissionRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SubmissionRunPayload{}, err
	}
	return payload, nil
}
