package bridge

import "code.hybscloud.com/atomix"

// Stats is a point-in-time snapshot of bridge activity.
type Stats struct {
	Mode      string `json:"mode"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Queued    int64  `json:"queued"`
	InFlight  int64  `json:"in_flight"`
	Pending   int    `json:"pending_outcomes"`
}

// counters are updated by submitters (submitted, queued) and the executor
// (everything else).
type counters struct {
	submitted atomix.Uint64
	completed atomix.Uint64
	failed    atomix.Uint64
	queued    atomix.Int64
	inFlight  atomix.Int64
}
