package api

import "encoding/json"

// Task lifecycle states the backend reports.
const (
	TaskIdle    = "idle"
	TaskPending = "pending"
	TaskRunning = "running"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

// TaskActive reports whether a status counts as an active task state.
// Active states drive faster polling and suppress the refresh variant.
func TaskActive(status string) bool {
	return status == TaskRunning || status == TaskPending
}

// Phone check outcomes from /auth/check.
const (
	PhoneValid        = "valid"
	PhoneNeedRegister = "need_register"
	PhoneExpired      = "expired"
)

// UserStatus is the remote-owned snapshot fetched by the poller. The
// client never stores it beyond the most recent copy.
type UserStatus struct {
	Nick       string `json:"nick"`
	Integral   int64  `json:"integral"`
	TaskStatus string `json:"task_status"`
}

// TaskOptions selects which task groups the remote runner executes.
type TaskOptions struct {
	General bool `json:"general"`
	Alipay  bool `json:"alipay"`
}

// loginEnvelope is the bootstrap exchange response shape shared by
// /api/login and /auth/quick_login.
type loginEnvelope struct {
	Code int       `json:"code"`
	Msg  string    `json:"msg"`
	Data loginData `json:"data"`
}

type loginData struct {
	SessionToken string      `json:"session_token"`
	UID          json.Number `json:"uid"`
}

type checkEnvelope struct {
	Status string `json:"status"`
}

type ackEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// detailEnvelope is the backend's error body shape.
type detailEnvelope struct {
	Detail string `json:"detail"`
}

// TableDump is the admin table introspection pass-through. Row shapes are
// backend-owned; the client renders them verbatim.
type TableDump struct {
	Name string           `json:"name"`
	Rows []map[string]any `json:"rows"`
}
