package types

// CallRecord is one finished queue call, persisted for SLA history
type CallRecord struct {
	DateKey      string  `json:"dateKey" dynamodbav:"DateKey"` // YYYY-MM-DD (partition key)
	CallID       string  `json:"callId" dynamodbav:"CallID"`   // sort key
	Queue        string  `json:"queue" dynamodbav:"Queue"`
	Agent        string  `json:"agent,omitempty" dynamodbav:"Agent"`
	WaitTime     float64 `json:"waitTime" dynamodbav:"WaitTime"` // seconds
	TalkTime     float64 `json:"talkTime" dynamodbav:"TalkTime"` // seconds
	Abandoned    bool    `json:"abandoned" dynamodbav:"Abandoned"`
	AnsweredInSL bool    `json:"answeredInSL" dynamodbav:"AnsweredInSL"`
	CompleteTime string  `json:"completeTime,omitempty" dynamodbav:"CompleteTime"` // RFC3339
}

// QueueHistory is the trailing-window call tally for one queue
type QueueHistory struct {
	Completed      int `json:"completed"`
	Abandoned      int `json:"abandoned"`
	AnsweredWithin int `json:"answeredWithin"` // completed calls answered inside the SL threshold
}

// QueueStats is the aggregated view of one queue
type QueueStats struct {
	Name          string  `json:"name"`
	CallsWaiting  int     `json:"callsWaiting"`
	LongestWait   int     `json:"longestWait"` // seconds
	AgentsTotal   int     `json:"agentsTotal"`
	AgentsReady   int     `json:"agentsReady"`
	AgentsPaused  int     `json:"agentsPaused"`
	AgentsInCall  int     `json:"agentsInCall"`
	Completed     int     `json:"completed"`
	Abandoned     int     `json:"abandoned"`
	SLACompliance float64 `json:"slaCompliance"` // percent
	AbandonRate   float64 `json:"abandonRate"`   // percent
	HoldTime      int     `json:"holdTime"`      // seconds
	TalkTime      int     `json:"talkTime"`      // seconds
	WindowDays    int     `json:"windowDays"`
}
