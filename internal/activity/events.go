package activity

import (
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
)

// Kind is the indexer's __typename for an event.
type Kind string

const (
	KindAttack                   Kind = "Attack"
	KindKilled                   Kind = "Killed"
	KindMint                     Kind = "Mint"
	KindPlayed                   Kind = "Played"
	KindItemConsumed             Kind = "ItemConsumed"
	KindShopItemPurchased        Kind = "ShopItemPurchased"
	KindLandTransfer             Kind = "LandTransferEvent"
	KindLandMinted               Kind = "LandMintedEvent"
	KindLandNameChanged          Kind = "LandNameChangedEvent"
	KindVillageUpgradedWithLeaf  Kind = "VillageUpgradedWithLeafEvent"
	KindVillageSpeedUpWithSeed   Kind = "VillageSpeedUpWithSeedEvent"
	KindTownUpgradedWithLeaf     Kind = "TownUpgradedWithLeafEvent"
	KindTownSpeedUpWithSeed      Kind = "TownSpeedUpWithSeedEvent"
	KindQuestStarted             Kind = "QuestStartedEvent"
	KindQuestFinalized           Kind = "QuestFinalizedEvent"
	KindVillageProductionClaimed Kind = "VillageProductionClaimedEvent"
)

// AllKinds lists every kind the indexer can return, in query order.
func AllKinds() []Kind {
	return []Kind{
		KindAttack,
		KindKilled,
		KindMint,
		KindPlayed,
		KindItemConsumed,
		KindShopItemPurchased,
		KindLandTransfer,
		KindLandMinted,
		KindLandNameChanged,
		KindVillageUpgradedWithLeaf,
		KindVillageSpeedUpWithSeed,
		KindTownUpgradedWithLeaf,
		KindTownSpeedUpWithSeed,
		KindQuestStarted,
		KindQuestFinalized,
		KindVillageProductionClaimed,
	}
}

// Event is one on-chain game event. The set of implementations is closed:
// every concrete type lives in this file.
type Event interface {
	Kind() Kind
	EventID() string
	// Timestamp is the unix-seconds value as sent by the indexer.
	Timestamp() string
	event()
}

// Header carries the fields shared by every event.
type Header struct {
	ID   string `json:"id"`
	Time string `json:"timestamp"`
}

func (h Header) EventID() string   { return h.ID }
func (h Header) Timestamp() string { return h.Time }
func (Header) event()              {}

// Unix parses the timestamp as unix seconds.
func (h Header) Unix() (int64, error) {
	return strconv.ParseInt(h.Time, 10, 64)
}

type Attack struct {
	Header
	Attacker     string `json:"attacker"`
	Winner       string `json:"winner"`
	Loser        string `json:"loser"`
	ScoresWon    string `json:"scoresWon"`
	AttackerName string `json:"attackerName"`
	WinnerName   string `json:"winnerName"`
	LoserName    string `json:"loserName"`
}

type Killed struct {
	Header
	NftID      string `json:"nftId"`
	DeadID     string `json:"deadId"`
	Killer     string `json:"killer"`
	WinnerName string `json:"winnerName"`
	LoserName  string `json:"loserName"`
	Reward     string `json:"reward"`
}

type Mint struct {
	Header
	NftID string `json:"nftId"`
}

type Played struct {
	Header
	NftID         string `json:"nftId"`
	NftName       string `json:"nftName"`
	Points        string `json:"points"`
	TimeExtension string `json:"timeExtension"`
	GameName      string `json:"gameName"`
}

type ItemConsumed struct {
	Header
	NftID   string `json:"nftId"`
	NftName string `json:"nftName"`
	Giver   string `json:"giver"`
	ItemID  string `json:"itemId"`
}

type ShopItemPurchased struct {
	Header
	NftID   string `json:"nftId"`
	NftName string `json:"nftName"`
	Giver   string `json:"giver"`
	ItemID  string `json:"itemId"`
}

type LandTransfer struct {
	Header
	From        string `json:"from"`
	To          string `json:"to"`
	TokenID     string `json:"tokenId"`
	BlockHeight string `json:"blockHeight"`
}

type LandMinted struct {
	Header
	To          string `json:"to"`
	TokenID     string `json:"tokenId"`
	MintPrice   string `json:"mintPrice"`
	BlockHeight string `json:"blockHeight"`
}

type LandNameChanged struct {
	Header
	TokenID     string `json:"tokenId"`
	Name        string `json:"name"`
	BlockHeight string `json:"blockHeight"`
}

// BuildingUpgrade covers the four leaf-upgrade / seed-speed-up variants,
// which share a payload and differ only in kind.
type BuildingUpgrade struct {
	Header
	kind        Kind
	LandID      string `json:"landId"`
	BuildingID  int    `json:"buildingId"`
	UpgradeCost string `json:"upgradeCost,omitempty"`
	SpeedUpCost string `json:"speedUpCost,omitempty"`
	XP          string `json:"xp"`
	BlockHeight string `json:"blockHeight"`
}

// NewBuildingUpgrade builds one of the four building variants.
func NewBuildingUpgrade(kind Kind, h Header) BuildingUpgrade {
	return BuildingUpgrade{Header: h, kind: kind}
}

// IsTown reports whether the building belongs to the town rather than the village.
func (b BuildingUpgrade) IsTown() bool {
	return b.kind == KindTownUpgradedWithLeaf || b.kind == KindTownSpeedUpWithSeed
}

// IsSpeedUp reports whether the event was a seed speed-up rather than a leaf upgrade.
func (b BuildingUpgrade) IsSpeedUp() bool {
	return b.kind == KindVillageSpeedUpWithSeed || b.kind == KindTownSpeedUpWithSeed
}

type QuestStarted struct {
	Header
	LandID       string `json:"landId"`
	FarmerSlotID string `json:"farmerSlotId"`
	Difficulty   int    `json:"difficulty"`
	StartBlock   string `json:"startBlock"`
	EndBlock     string `json:"endBlock"`
	BlockHeight  string `json:"blockHeight"`
}

type QuestFinalized struct {
	Header
	LandID       string `json:"landId"`
	FarmerSlotID string `json:"farmerSlotId"`
	Player       string `json:"player"`
	RewardType   int    `json:"rewardType"`
	Amount       string `json:"amount"`
	BlockHeight  string `json:"blockHeight"`
}

type VillageProductionClaimed struct {
	Header
	LandID      string `json:"landId"`
	BuildingID  int    `json:"buildingId"`
	BlockHeight string `json:"blockHeight"`
}

// BundledConsumption replaces every group of ItemConsumed events that share
// subject, timestamp and item. Count is always at least 1.
type BundledConsumption struct {
	Header
	NftID   string
	NftName string
	Giver   string
	ItemID  string
	Count   int
}

func (Attack) Kind() Kind                   { return KindAttack }
func (Killed) Kind() Kind                   { return KindKilled }
func (Mint) Kind() Kind                     { return KindMint }
func (Played) Kind() Kind                   { return KindPlayed }
func (ItemConsumed) Kind() Kind             { return KindItemConsumed }
func (ShopItemPurchased) Kind() Kind        { return KindShopItemPurchased }
func (LandTransfer) Kind() Kind             { return KindLandTransfer }
func (LandMinted) Kind() Kind               { return KindLandMinted }
func (LandNameChanged) Kind() Kind          { return KindLandNameChanged }
func (b BuildingUpgrade) Kind() Kind        { return b.kind }
func (QuestStarted) Kind() Kind             { return KindQuestStarted }
func (QuestFinalized) Kind() Kind           { return KindQuestFinalized }
func (VillageProductionClaimed) Kind() Kind { return KindVillageProductionClaimed }

// Kind reports ItemConsumed: a bundle is still a consumption event.
func (BundledConsumption) Kind() Kind { return KindItemConsumed }

// decodeEvent turns one indexer record into its typed event.
func decodeEvent(kind Kind, raw string) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch kind {
	case KindAttack:
		var v Attack
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindKilled:
		var v Killed
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindMint:
		var v Mint
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindPlayed:
		var v Played
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindItemConsumed:
		var v ItemConsumed
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindShopItemPurchased:
		var v ShopItemPurchased
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindLandTransfer:
		var v LandTransfer
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindLandMinted:
		var v LandMinted
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindLandNameChanged:
		var v LandNameChanged
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindVillageUpgradedWithLeaf, KindVillageSpeedUpWithSeed,
		KindTownUpgradedWithLeaf, KindTownSpeedUpWithSeed:
		var v BuildingUpgrade
		err = sonic.UnmarshalString(raw, &v)
		v.kind = kind
		ev = v
	case KindQuestStarted:
		var v QuestStarted
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindQuestFinalized:
		var v QuestFinalized
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	case KindVillageProductionClaimed:
		var v VillageProductionClaimed
		err = sonic.UnmarshalString(raw, &v)
		ev = v
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return ev, nil
}
