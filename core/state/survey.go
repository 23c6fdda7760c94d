package state

import (
	"math/big"
	"strings"

	"surveychain/native/survey"
)

var (
	surveyRecordPrefix  = []byte("survey/record/")
	surveyRewardPrefix  = []byte("survey/rewarded/")
	surveyManagerPrefix = []byte("survey/manager/")
	surveyManagerIndex  = []byte("survey/manager/index")
	surveyTokenPrefix   = []byte("survey/proof-token/")
	surveyParamsKey     = []byte("survey/params")
)

func surveyRecordKey(id string) []byte {
	return append(append([]byte(nil), surveyRecordPrefix...), strings.TrimSpace(id)...)
}

func surveyRewardKey(surveyID, participant string) []byte {
	buf := append(append([]byte(nil), surveyRewardPrefix...), strings.TrimSpace(surveyID)...)
	buf = append(buf, ':')
	return append(buf, strings.TrimSpace(participant)...)
}

func surveyManagerKey(addr string) []byte {
	return append(append([]byte(nil), surveyManagerPrefix...), strings.TrimSpace(addr)...)
}

func surveyTokenKey(token string) []byte {
	return append(append([]byte(nil), surveyTokenPrefix...), token...)
}

type storedSurvey struct {
	Creator              string
	ParticipantsLimit    uint32
	RewardPerUser        *big.Int
	RewardDenom          string
	ParticipantsRewarded uint32
	SurveyHash           []byte
	Cancelled            bool
	Refunded             bool
	CreatedAt            uint64
}

type storedManager struct {
	Address string
	PubKey  []byte
	Active  bool
}

type storedParams struct {
	Owner           string
	GasStation      string
	ContractAddress string
	ReceiverPrefix  string
	ChannelID       string
	RewardDenom     string
}

// SurveyPut persists the survey record under its identifier.
func (m *Manager) SurveyPut(s *survey.Survey) error {
	stored := storedSurvey{
		Creator:              s.Creator,
		ParticipantsLimit:    s.ParticipantsLimit,
		RewardPerUser:        s.RewardPerUser,
		RewardDenom:          s.RewardDenom,
		ParticipantsRewarded: s.ParticipantsRewarded,
		SurveyHash:           s.SurveyHash,
		Cancelled:            s.Cancelled,
		Refunded:             s.Refunded,
		CreatedAt:            s.CreatedAt,
	}
	return m.KVPut(surveyRecordKey(s.ID), &stored)
}

// SurveyGet loads the survey record, reporting whether it exists.
func (m *Manager) SurveyGet(id string) (*survey.Survey, bool, error) {
	var stored storedSurvey
	ok, err := m.KVGet(surveyRecordKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &survey.Survey{
		ID:                   strings.TrimSpace(id),
		Creator:              stored.Creator,
		ParticipantsLimit:    stored.ParticipantsLimit,
		RewardPerUser:        stored.RewardPerUser,
		RewardDenom:          stored.RewardDenom,
		ParticipantsRewarded: stored.ParticipantsRewarded,
		SurveyHash:           stored.SurveyHash,
		Cancelled:            stored.Cancelled,
		Refunded:             stored.Refunded,
		CreatedAt:            stored.CreatedAt,
	}, true, nil
}

// SurveyHas reports whether a record exists for the identifier.
func (m *Manager) SurveyHas(id string) (bool, error) {
	return m.KVHas(surveyRecordKey(id))
}

// RewardedMark permanently flags the (survey, participant) pair as rewarded.
func (m *Manager) RewardedMark(surveyID, participant string) error {
	return m.KVPut(surveyRewardKey(surveyID, participant), true)
}

// RewardedHas reports whether the pair was already rewarded.
func (m *Manager) RewardedHas(surveyID, participant string) (bool, error) {
	var rewarded bool
	ok, err := m.KVGet(surveyRewardKey(surveyID, participant), &rewarded)
	if err != nil || !ok {
		return false, err
	}
	return rewarded, nil
}

// ManagerPut registers or updates a manager record and maintains the address
// index used for listing.
func (m *Manager) ManagerPut(info survey.ManagerInfo) error {
	var index []string
	if _, err := m.KVGet(surveyManagerIndex, &index); err != nil {
		return err
	}
	found := false
	for _, addr := range index {
		if addr == info.Address {
			found = true
			break
		}
	}
	if !found {
		index = append(index, info.Address)
		if err := m.KVPut(surveyManagerIndex, index); err != nil {
			return err
		}
	}
	return m.KVPut(surveyManagerKey(info.Address), &storedManager{
		Address: info.Address,
		PubKey:  info.PubKey,
		Active:  info.Active,
	})
}

// ManagerGet loads a single manager record.
func (m *Manager) ManagerGet(addr string) (survey.ManagerInfo, bool, error) {
	var stored storedManager
	ok, err := m.KVGet(surveyManagerKey(addr), &stored)
	if err != nil || !ok {
		return survey.ManagerInfo{}, ok, err
	}
	return survey.ManagerInfo{Address: stored.Address, PubKey: stored.PubKey, Active: stored.Active}, true, nil
}

// ManagerList returns every registered manager, active or not.
func (m *Manager) ManagerList() ([]survey.ManagerInfo, error) {
	var index []string
	if _, err := m.KVGet(surveyManagerIndex, &index); err != nil {
		return nil, err
	}
	managers := make([]survey.ManagerInfo, 0, len(index))
	for _, addr := range index {
		info, ok, err := m.ManagerGet(addr)
		if err != nil {
			return nil, err
		}
		if ok {
			managers = append(managers, info)
		}
	}
	return managers, nil
}

// ParamsPut persists the ledger configuration.
func (m *Manager) ParamsPut(p *survey.Params) error {
	return m.KVPut(surveyParamsKey, &storedParams{
		Owner:           p.Owner,
		GasStation:      p.GasStation,
		ContractAddress: p.ContractAddress,
		ReceiverPrefix:  p.ReceiverPrefix,
		ChannelID:       p.ChannelID,
		RewardDenom:     p.RewardDenom,
	})
}

// ParamsGet loads the ledger configuration, reporting whether it was ever
// initialised.
func (m *Manager) ParamsGet() (*survey.Params, bool, error) {
	var stored storedParams
	ok, err := m.KVGet(surveyParamsKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &survey.Params{
		Owner:           stored.Owner,
		GasStation:      stored.GasStation,
		ContractAddress: stored.ContractAddress,
		ReceiverPrefix:  stored.ReceiverPrefix,
		ChannelID:       stored.ChannelID,
		RewardDenom:     stored.RewardDenom,
	}, true, nil
}

// ProofTokenUsed reports whether the single-use token was consumed by any
// earlier action. Tokens form one global replay namespace across action
// kinds.
func (m *Manager) ProofTokenUsed(token string) (bool, error) {
	var used bool
	ok, err := m.KVGet(surveyTokenKey(token), &used)
	if err != nil || !ok {
		return false, err
	}
	return used, nil
}

// ProofTokenMarkUsed consumes the token permanently.
func (m *Manager) ProofTokenMarkUsed(token string) error {
	return m.KVPut(surveyTokenKey(token), true)
}
