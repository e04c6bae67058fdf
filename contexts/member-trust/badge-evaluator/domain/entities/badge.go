package entities

import "time"

type BadgeType string

const (
	BadgeFirstContribution BadgeType = "first_contribution"
	BadgeReliableMember    BadgeType = "reliable_member"
	BadgePerfectRecord     BadgeType = "perfect_record"
	BadgeGroupVeteran      BadgeType = "group_veteran"
	BadgeTrustedMember     BadgeType = "trusted_member"
	BadgeCommunityBuilder  BadgeType = "community_builder"
)

type Badge struct {
	BadgeID  string
	Wallet   string
	Type     BadgeType
	EarnedAt time.Time
}
