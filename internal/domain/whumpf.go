package domain

// WhumpfObservation carries the SnowPilot whumpfData extension block: the
// observer's report of snowpack collapses heard or felt around the pit.
// Boolean pointers are nil when the corresponding element was absent; the
// depth and size fields stay verbatim strings because the extension imposes
// no unit or format on them.
type WhumpfObservation struct {
	WhumpfCracking           *bool  `json:"whumpf_cracking,omitempty"`
	WhumpfNoCracking         *bool  `json:"whumpf_no_cracking,omitempty"`
	CrackingNoWhumpf         *bool  `json:"cracking_no_whumpf,omitempty"`
	WhumpfNearPit            *bool  `json:"whumpf_near_pit,omitempty"`
	WhumpfTriggeredRemoteAva *bool  `json:"whumpf_triggered_remote_ava,omitempty"`
	WhumpfDepthWeakLayer     string `json:"whumpf_depth_weak_layer,omitempty"`
	WhumpfSize               string `json:"whumpf_size,omitempty"`
}
