package schemas

import (
	z "github.com/Oudwins/zog"
)

type ExecMode string

const (
	ModeSync  ExecMode = "sync"
	ModeAsync ExecMode = "async"
)

type SubmitRequest struct {
	Type     string         `json:"type" zog:"type"`
	Params   map[string]any `json:"params" zog:"params"`
	Priority int            `json:"priority" zog:"priority"`
	Mode     ExecMode       `json:"mode" zog:"mode"`
}

var SubmitSchema = z.Struct(z.Shape{
	"Type":     z.String().Required(z.Message("task type is required")).Trim(),
	"Priority": z.Int().Default(0).GTE(0).LTE(10),
	"Mode":     z.StringLike[ExecMode]().Default(ModeAsync).OneOf([]ExecMode{ModeSync, ModeAsync}),
})

type SubmitResponse struct {
	Task   Task        `json:"task"`
	Result *TaskResult `json:"result,omitempty"`
}
