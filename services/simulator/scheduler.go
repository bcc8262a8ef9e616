package simulator

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// SlotScheduler turns a SchedulerConfig into a flat list of ActionSlots,
// one per (account, trade index) pair, spreading orders across the
// configured markets by weight and alternating each account's side on
// successive trades so a run exercises both bids and asks evenly.
type SlotScheduler struct {
	cfg SchedulerConfig
	rnd *rand.Rand
}

// NewSlotScheduler builds a scheduler over cfg, seeded with seed for
// reproducible runs.
func NewSlotScheduler(cfg SchedulerConfig, seed int64) *SlotScheduler {
	return &SlotScheduler{cfg: cfg, rnd: rand.New(rand.NewSource(seed))}
}

// GenerateSchedule produces the full slot list for the configured accounts
// and trade count. Account index parity swaps which asset of the chosen
// market is bid vs. ask, so two accounts trading the same market don't
// always mirror each other's side.
func (s *SlotScheduler) GenerateSchedule() []*ActionSlot {
	total := s.totalWeight()
	if total == 0 || len(s.cfg.AccountIDs) == 0 {
		return nil
	}

	var slots []*ActionSlot
	for accIdx, accountID := range s.cfg.AccountIDs {
		side := SideBid
		if accIdx%2 == 1 {
			side = SideAsk
		}
		for trade := 0; trade < s.cfg.TradesPerAccount; trade++ {
			market := s.pickMarket(total)
			bidAsset, askAsset := market.AssetOne, market.AssetTwo
			if accIdx%2 == 1 {
				bidAsset, askAsset = askAsset, bidAsset
			}
			amount := s.randomAmount()
			action := OrderAction{
				WalletID:  accountID,
				MarketID:  market.MarketID,
				BidAsset:  bidAsset,
				AskAsset:  askAsset,
				Side:      side,
				Strategy:  s.pickStrategy(trade),
				BidAmount: amount,
				AskAmount: amount.Mul(decimal.NewFromFloat(0.95)).Floor(),
			}
			slots = append(slots, NewActionSlot(accountID, action))

			if side == SideBid {
				side = SideAsk
			} else {
				side = SideBid
			}
		}
	}
	return slots
}

func (s *SlotScheduler) totalWeight() int {
	total := 0
	for _, m := range s.cfg.Markets {
		total += m.Weight
	}
	return total
}

func (s *SlotScheduler) pickMarket(total int) MarketDistribution {
	pick := s.rnd.Intn(total)
	for _, m := range s.cfg.Markets {
		if pick < m.Weight {
			return m
		}
		pick -= m.Weight
	}
	return s.cfg.Markets[len(s.cfg.Markets)-1]
}

func (s *SlotScheduler) pickStrategy(tradeIdx int) OrderMatchingStrategy {
	switch tradeIdx % 3 {
	case 0:
		return MatchingStrategyTaker
	case 1:
		return MatchingStrategyMaker
	default:
		return MatchingStrategyCrossBook
	}
}

func (s *SlotScheduler) randomAmount() decimal.Decimal {
	minF, _ := s.cfg.MinAmount.Float64()
	maxF, _ := s.cfg.MaxAmount.Float64()
	if maxF <= minF {
		return s.cfg.MinAmount
	}
	v := minF + s.rnd.Float64()*(maxF-minF)
	return decimal.NewFromFloat(v)
}
