package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"surveychain/native/survey"
	"surveychain/native/transfer"
	"surveychain/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestSurveyRoundTrip(t *testing.T) {
	m := newTestManager(t)

	_, ok, err := m.SurveyGet("missing")
	require.NoError(t, err)
	require.False(t, ok)

	record := &survey.Survey{
		ID:                   "survey-1",
		Creator:              "svy1creator",
		ParticipantsLimit:    10,
		RewardPerUser:        big.NewInt(100),
		RewardDenom:          "usvy",
		ParticipantsRewarded: 3,
		SurveyHash:           []byte("content-hash"),
		Cancelled:            true,
		Refunded:             true,
		CreatedAt:            1_700_000_000,
	}
	require.NoError(t, m.SurveyPut(record))

	loaded, ok, err := m.SurveyGet("survey-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record.ID, loaded.ID)
	require.Equal(t, record.Creator, loaded.Creator)
	require.Equal(t, record.ParticipantsLimit, loaded.ParticipantsLimit)
	require.Equal(t, 0, record.RewardPerUser.Cmp(loaded.RewardPerUser))
	require.Equal(t, record.ParticipantsRewarded, loaded.ParticipantsRewarded)
	require.Equal(t, record.SurveyHash, loaded.SurveyHash)
	require.True(t, loaded.Cancelled)
	require.True(t, loaded.Refunded)
	require.Equal(t, record.CreatedAt, loaded.CreatedAt)

	has, err := m.SurveyHas("survey-1")
	require.NoError(t, err)
	require.True(t, has)
}

func TestRewardedMarks(t *testing.T) {
	m := newTestManager(t)

	rewarded, err := m.RewardedHas("survey-1", "alice")
	require.NoError(t, err)
	require.False(t, rewarded)

	require.NoError(t, m.RewardedMark("survey-1", "alice"))

	rewarded, err = m.RewardedHas("survey-1", "alice")
	require.NoError(t, err)
	require.True(t, rewarded)

	// Marks are scoped per survey.
	rewarded, err = m.RewardedHas("survey-2", "alice")
	require.NoError(t, err)
	require.False(t, rewarded)

	// The pair key must not be confusable by shifting the separator.
	rewarded, err = m.RewardedHas("survey-1:al", "ice")
	require.NoError(t, err)
	require.False(t, rewarded)
}

func TestManagerRegistry(t *testing.T) {
	m := newTestManager(t)

	list, err := m.ManagerList()
	require.NoError(t, err)
	require.Empty(t, list)

	first := survey.ManagerInfo{Address: "svy1manager1", PubKey: []byte{1, 2, 3}, Active: true}
	second := survey.ManagerInfo{Address: "svy1manager2", PubKey: []byte{4, 5, 6}, Active: true}
	require.NoError(t, m.ManagerPut(first))
	require.NoError(t, m.ManagerPut(second))

	list, err = m.ManagerList()
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Updating an existing manager must not duplicate the index entry.
	first.Active = false
	require.NoError(t, m.ManagerPut(first))
	list, err = m.ManagerList()
	require.NoError(t, err)
	require.Len(t, list, 2)

	info, ok, err := m.ManagerGet("svy1manager1")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, info.Active)
	require.Equal(t, []byte{1, 2, 3}, info.PubKey)
}

func TestParamsRoundTrip(t *testing.T) {
	m := newTestManager(t)

	_, ok, err := m.ParamsGet()
	require.NoError(t, err)
	require.False(t, ok)

	params := &survey.Params{
		Owner:           "svy1owner",
		GasStation:      "svy1gas",
		ContractAddress: "svy1contract",
		ReceiverPrefix:  "svy",
		ChannelID:       "channel-0",
		RewardDenom:     "usvy",
	}
	require.NoError(t, m.ParamsPut(params))

	loaded, ok, err := m.ParamsGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, params, loaded)
}

func TestProofTokens(t *testing.T) {
	m := newTestManager(t)

	used, err := m.ProofTokenUsed("tok-1")
	require.NoError(t, err)
	require.False(t, used)

	require.NoError(t, m.ProofTokenMarkUsed("tok-1"))

	used, err = m.ProofTokenUsed("tok-1")
	require.NoError(t, err)
	require.True(t, used)

	used, err = m.ProofTokenUsed("tok-2")
	require.NoError(t, err)
	require.False(t, used)
}

func TestAccounts(t *testing.T) {
	m := newTestManager(t)

	bal, err := m.BalanceOf("alice", "usvy")
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	require.NoError(t, m.Credit("alice", "usvy", big.NewInt(1000)))
	bal, err = m.BalanceOf("alice", "usvy")
	require.NoError(t, err)
	require.Equal(t, 0, bal.Cmp(big.NewInt(1000)))

	require.NoError(t, m.Transfer("alice", "bob", "usvy", big.NewInt(400)))
	bal, err = m.BalanceOf("alice", "usvy")
	require.NoError(t, err)
	require.Equal(t, 0, bal.Cmp(big.NewInt(600)))
	bal, err = m.BalanceOf("bob", "usvy")
	require.NoError(t, err)
	require.Equal(t, 0, bal.Cmp(big.NewInt(400)))

	require.Error(t, m.Transfer("alice", "bob", "usvy", big.NewInt(601)))

	// Self-transfer leaves the balance untouched.
	require.NoError(t, m.Transfer("alice", "alice", "usvy", big.NewInt(100)))
	bal, err = m.BalanceOf("alice", "usvy")
	require.NoError(t, err)
	require.Equal(t, 0, bal.Cmp(big.NewInt(600)))

	// Balances are per denom.
	bal, err = m.BalanceOf("alice", "other")
	require.NoError(t, err)
	require.Zero(t, bal.Sign())
}

func TestPendingRoundTrip(t *testing.T) {
	m := newTestManager(t)

	_, ok, err := m.PendingGet("missing")
	require.NoError(t, err)
	require.False(t, ok)

	pending := &transfer.Pending{
		CorrelationID: "corr-1",
		RecoveryAddr:  "svy1recipient",
		Denom:         "usvy",
		Amount:        big.NewInt(500),
		TimeoutUnix:   1_700_000_600,
		CreatedAt:     1_700_000_000,
	}
	require.NoError(t, m.PendingPut(pending))

	loaded, ok, err := m.PendingGet("corr-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pending.RecoveryAddr, loaded.RecoveryAddr)
	require.Equal(t, 0, pending.Amount.Cmp(loaded.Amount))
	require.Equal(t, pending.TimeoutUnix, loaded.TimeoutUnix)

	require.NoError(t, m.PendingDelete("corr-1"))
	_, ok, err = m.PendingGet("corr-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInFlightRoundTrip(t *testing.T) {
	m := newTestManager(t)

	packet := &transfer.Packet{
		RecoveryAddr: "svy1recipient",
		ChannelID:    "channel-0",
		Sequence:     7,
		Denom:        "usvy",
		Amount:       big.NewInt(500),
		Status:       transfer.StatusSent,
	}
	require.NoError(t, m.InFlightPut(packet))

	loaded, ok, err := m.InFlightGet("channel-0", 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, transfer.StatusSent, loaded.Status)
	require.Equal(t, uint64(7), loaded.Sequence)

	// Other channels and sequences stay independent.
	_, ok, err = m.InFlightGet("channel-1", 7)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = m.InFlightGet("channel-0", 8)
	require.NoError(t, err)
	require.False(t, ok)

	packet.Status = transfer.StatusTimedOut
	require.NoError(t, m.InFlightPut(packet))
	loaded, ok, err = m.InFlightGet("channel-0", 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, transfer.StatusTimedOut, loaded.Status)
}

func TestRecoveryLedger(t *testing.T) {
	m := newTestManager(t)

	entries, err := m.RecoveryList("svy1recipient")
	require.NoError(t, err)
	require.Empty(t, entries)

	first := &transfer.Packet{RecoveryAddr: "svy1recipient", ChannelID: "channel-0", Sequence: 1, Denom: "usvy", Amount: big.NewInt(100), Status: transfer.StatusTimedOut}
	second := &transfer.Packet{RecoveryAddr: "svy1recipient", ChannelID: "channel-0", Sequence: 2, Denom: "usvy", Amount: big.NewInt(200), Status: transfer.StatusAckFailure}
	require.NoError(t, m.RecoveryAppend("svy1recipient", first))
	require.NoError(t, m.RecoveryAppend("svy1recipient", second))

	entries, err = m.RecoveryList("svy1recipient")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(1), entries[0].Sequence)
	require.Equal(t, uint64(2), entries[1].Sequence)
	require.Equal(t, transfer.StatusAckFailure, entries[1].Status)

	entries, err = m.RecoveryList("svy1other")
	require.NoError(t, err)
	require.Empty(t, entries)
}
