// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package types

type SendEmailRequest struct {
	To             string            `json:"to"`
	From           string            `json:"from"`
	Subject        string            `json:"subject"`
	BodyText       string            `json:"bodyText,optional"`
	BodyHTML       string            `json:"bodyHtml,optional"`
	AccountID      string            `json:"accountId"`
	AccountAgeDays int               `json:"accountAgeDays"`
	Priority       string            `json:"priority,default=normal,options=critical|high|normal|low"`
	ScheduledAt    string            `json:"scheduledAt,optional"` // RFC3339; empty means now
	Headers        map[string]string `json:"headers,optional"`
	CampaignID     string            `json:"campaignId,optional"`
}

type SendEmailResponse struct {
	Id     string `json:"id"`
	Queue  string `json:"queue"`
	Status string `json:"status"`
}

type QueueRequest struct {
	Name string `path:"name"`
}

type QueueStatsResponse struct {
	Queue   string `json:"queue"`
	Waiting int    `json:"waiting"`
	Delayed int    `json:"delayed"`
	Paused  bool   `json:"paused"`
	Dlq     int    `json:"dlq"`
}

type QueueStateResponse struct {
	Queue  string `json:"queue"`
	Paused bool   `json:"paused"`
}

type ComponentStatus struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

type AlertView struct {
	Id        string `json:"id"`
	RuleId    string `json:"ruleId"`
	Component string `json:"component"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	RaisedAt  string `json:"raisedAt"`
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components"`
	Alerts     []AlertView       `json:"alerts"`
}

type GuardTask struct {
	TaskID         string   `json:"taskId"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	Assignee       string   `json:"assignee,optional"`
	Tags           []string `json:"tags,optional"`
	BlockedAt      string   `json:"blockedAt,optional"`   // RFC3339
	UnblockedAt    string   `json:"unblockedAt,optional"` // RFC3339
	EstimatedHours float64  `json:"estimatedHours,optional"`
	ActualHours    float64  `json:"actualHours,optional"`
	CreatedAt      string   `json:"createdAt"` // RFC3339
}

type GuardTrainRequest struct {
	Tasks []GuardTask `json:"tasks"`
}

type GuardPatternView struct {
	Id                  string  `json:"id"`
	Name                string  `json:"name"`
	Severity            string  `json:"severity"`
	Frequency           float64 `json:"frequency"`
	AvgResolutionTimeMs int64   `json:"avgResolutionTimeMs"`
	OccurrenceCount     int     `json:"occurrenceCount"`
}

type GuardTrainResponse struct {
	Patterns []GuardPatternView `json:"patterns"`
}

type GuardPredictRequest struct {
	Tasks []GuardTask `json:"tasks"`
}

type GuardPredictionView struct {
	TaskID              string   `json:"taskId"`
	PatternID           string   `json:"patternId"`
	Confidence          float64  `json:"confidence"`
	PredictedBlockTime  string   `json:"predictedBlockTime"`
	ContributingFactors []string `json:"contributingFactors"`
	RecommendedAction   string   `json:"recommendedAction"`
	MitigationTasks     []string `json:"mitigationTasks"`
}

type GuardPredictResponse struct {
	Predictions []GuardPredictionView `json:"predictions"`
}
