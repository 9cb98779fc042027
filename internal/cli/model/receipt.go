package model

import "time"

// Receipt — локальная квитанция о загруженной улике.
// Хранит дайджест, вычисленный клиентом до отправки, чтобы сверять его с сервером.
type Receipt struct {
	ID             string
	Name           string
	CaseRef        string
	ContentDigest  string
	SizeBytes      int64
	SourcePath     string
	IngestedAt     time.Time
	VerifiedAt     *time.Time
	VerifiedIntact *bool
}
