package gateway

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"surveychain/native/survey"
	"surveychain/native/transfer"
	"surveychain/observability"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Server is the HTTP front-end for the survey ledger. It deserializes
// requests and calls into the engines; all authorization happens inside the
// engines themselves.
type Server struct {
	surveys   *survey.Engine
	transfers *transfer.Engine
	obs       *Observability
	logger    *slog.Logger
	metrics   *observability.LedgerMetrics
	nowFn     func() time.Time
}

// NewServer wires the gateway to the two engines.
func NewServer(surveys *survey.Engine, transfers *transfer.Engine, obs *Observability, logger *slog.Logger) *Server {
	if surveys == nil {
		panic("survey engine required")
	}
	if transfers == nil {
		panic("transfer engine required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		surveys:   surveys,
		transfers: transfers,
		obs:       obs,
		logger:    logger,
		metrics:   observability.Ledger(),
		nowFn:     time.Now,
	}
}

// Router builds the chi route tree served by the daemon.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.obs != nil {
		r.Use(s.obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.obs != nil {
		r.Handle("/metrics", s.obs.MetricsHandler())
	}

	r.Route("/survey", func(sr chi.Router) {
		sr.Post("/create", s.handleCreateSurvey)
		sr.Post("/cancel", s.handleCancelSurvey)
		sr.Post("/pay-rewards", s.handlePayRewards)
		sr.Get("/{surveyID}", s.handleGetSurvey)
		sr.Get("/{surveyID}/amount-to-fund", s.handleAmountToFund)
		sr.Get("/{surveyID}/rewards-paid", s.handleRewardsPaid)
		sr.Get("/{surveyID}/claimed/{participant}", s.handleHasClaimed)
	})

	r.Route("/admin", func(sr chi.Router) {
		sr.Post("/set-manager", s.handleSetManager)
		sr.Post("/transfer-ownership", s.handleTransferOwnership)
		sr.Post("/set-gas-station", s.handleSetGasStation)
		sr.Post("/set-channel", s.handleSetChannel)
	})

	r.Route("/proofs", func(sr chi.Router) {
		sr.Post("/create-survey", s.handleCreateProof)
		sr.Post("/cancel-survey", s.handleCancelProof)
		sr.Post("/pay-rewards", s.handlePayProof)
	})

	r.Route("/callbacks", func(sr chi.Router) {
		sr.Post("/reply", s.handleReplyCallback)
		sr.Post("/ack", s.handleAckCallback)
		sr.Post("/timeout", s.handleTimeoutCallback)
	})

	r.Get("/params", s.handleGetParams)
	r.Get("/transfers/{channelID}/{sequence}", s.handleInFlight)
	r.Get("/recovery/{recoveryAddr}", s.handleRecoveryList)

	return r
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON payload: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("ledger action failed", "error", err)
	}
	s.writeError(w, status, err)
}

func (s *Server) observe(action string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveAction(action, outcome, s.nowFn().Sub(start).Seconds())
}

// --- Execute handlers ---

func (s *Server) handleCreateSurvey(w http.ResponseWriter, r *http.Request) {
	var req createSurveyRequest
	if !s.decode(w, r, &req) {
		return
	}
	sig, pubKey, err := req.decode()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	surveyHash, err := base64.StdEncoding.DecodeString(req.SurveyHash)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("survey_hash: %w", err))
		return
	}
	rewardPerUser, err := parseAmount("reward_per_user", req.RewardPerUser)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	gasAmount, err := parseAmount("amount_to_gas_station", req.GasStationAmount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	attached, err := parseAmount("attached_amount", req.AttachedAmount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	start := s.nowFn()
	record, err := s.surveys.CreateSurvey(survey.CreateSurveyArgs{
		Token:             req.Token,
		TimeToExpire:      req.TimeToExpire,
		Owner:             req.Owner,
		SurveyID:          req.SurveyID,
		ParticipantsLimit: req.ParticipantsLimit,
		RewardPerUser:     rewardPerUser,
		SurveyHash:        surveyHash,
		GasStationAmount:  gasAmount,
		AttachedAmount:    attached,
		ManagerPubKey:     pubKey,
		Signature:         sig,
	})
	s.observe("create_survey", start, err)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newSurveyResponse(record))
}

func (s *Server) handleCancelSurvey(w http.ResponseWriter, r *http.Request) {
	var req cancelSurveyRequest
	if !s.decode(w, r, &req) {
		return
	}
	sig, pubKey, err := req.decode()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	start := s.nowFn()
	refund, err := s.surveys.CancelSurvey(survey.CancelSurveyArgs{
		Token:         req.Token,
		TimeToExpire:  req.TimeToExpire,
		SurveyID:      req.SurveyID,
		ManagerPubKey: pubKey,
		Signature:     sig,
	})
	s.observe("cancel_survey", start, err)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"survey_id": req.SurveyID,
		"refund":    refund.String(),
	})
}

func (s *Server) handlePayRewards(w http.ResponseWriter, r *http.Request) {
	var req payRewardsRequest
	if !s.decode(w, r, &req) {
		return
	}
	sig, pubKey, err := req.decode()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	start := s.nowFn()
	total, err := s.surveys.PayRewards(survey.PayRewardsArgs{
		Token:         req.Token,
		TimeToExpire:  req.TimeToExpire,
		SurveyIDs:     req.SurveyIDs,
		Participants:  req.Participants,
		ManagerPubKey: pubKey,
		Signature:     sig,
	})
	s.observe("pay_rewards", start, err)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"pairs": strconv.Itoa(len(req.SurveyIDs)),
		"total": total.String(),
	})
}

func (s *Server) handleSetManager(w http.ResponseWriter, r *http.Request) {
	var req setManagerRequest
	if !s.decode(w, r, &req) {
		return
	}
	pubKey, err := base64.StdEncoding.DecodeString(req.PubKey)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("pub_key: %w", err))
		return
	}
	start := s.nowFn()
	err = s.surveys.SetManager(req.Caller, req.Manager, pubKey, req.Active)
	s.observe("set_manager", start, err)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req transferOwnershipRequest
	if !s.decode(w, r, &req) {
		return
	}
	start := s.nowFn()
	err := s.surveys.TransferOwnership(req.Caller, req.NewOwner)
	s.observe("transfer_ownership", start, err)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSetGasStation(w http.ResponseWriter, r *http.Request) {
	var req setGasStationRequest
	if !s.decode(w, r, &req) {
		return
	}
	start := s.nowFn()
	err := s.surveys.SetGasStation(req.Caller, req.GasStation)
	s.observe("set_gas_station", start, err)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSetChannel(w http.ResponseWriter, r *http.Request) {
	var req setChannelRequest
	if !s.decode(w, r, &req) {
		return
	}
	start := s.nowFn()
	err := s.surveys.SetChannel(req.Caller, req.ChannelID)
	s.observe("set_channel", start, err)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Query handlers ---

func (s *Server) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	record, err := s.surveys.GetSurvey(chi.URLParam(r, "surveyID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newSurveyResponse(record))
}

func (s *Server) handleAmountToFund(w http.ResponseWriter, r *http.Request) {
	amount, err := s.surveys.AmountToFund(chi.URLParam(r, "surveyID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"amount_to_fund": amount.String()})
}

func (s *Server) handleRewardsPaid(w http.ResponseWriter, r *http.Request) {
	amount, err := s.surveys.AmountRewardsPaid(chi.URLParam(r, "surveyID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"amount_rewards_paid": amount.String()})
}

func (s *Server) handleHasClaimed(w http.ResponseWriter, r *http.Request) {
	claimed, err := s.surveys.HasClaimedReward(chi.URLParam(r, "surveyID"), chi.URLParam(r, "participant"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"has_claimed": claimed})
}

func (s *Server) handleGetParams(w http.ResponseWriter, r *http.Request) {
	params, err := s.surveys.GetParams()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"owner":            params.Owner,
		"gas_station":      params.GasStation,
		"contract_address": params.ContractAddress,
		"receiver_prefix":  params.ReceiverPrefix,
		"channel_id":       params.ChannelID,
		"reward_denom":     params.RewardDenom,
	})
}

func (s *Server) handleInFlight(w http.ResponseWriter, r *http.Request) {
	sequence, err := strconv.ParseUint(chi.URLParam(r, "sequence"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("sequence: %w", err))
		return
	}
	packet, ok, err := s.transfers.InFlight(chi.URLParam(r, "channelID"), sequence)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no packet on %s at sequence %d", chi.URLParam(r, "channelID"), sequence))
		return
	}
	s.writeJSON(w, http.StatusOK, newPacketResponse(*packet))
}

func (s *Server) handleRecoveryList(w http.ResponseWriter, r *http.Request) {
	packets, err := s.transfers.Recoverable(chi.URLParam(r, "recoveryAddr"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]packetResponse, 0, len(packets))
	for _, p := range packets {
		out = append(out, newPacketResponse(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// --- Proof digest handlers ---

func (s *Server) writeDigest(w http.ResponseWriter, digest [32]byte, err error) {
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"digest": hex.EncodeToString(digest[:])})
}

func (s *Server) handleCreateProof(w http.ResponseWriter, r *http.Request) {
	var req createProofRequest
	if !s.decode(w, r, &req) {
		return
	}
	surveyHash, err := base64.StdEncoding.DecodeString(req.SurveyHash)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("survey_hash: %w", err))
		return
	}
	rewardPerUser, err := parseAmount("reward_per_user", req.RewardPerUser)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	gasAmount, err := parseAmount("amount_to_gas_station", req.GasStationAmount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	digest, err := survey.CreateSurveyDigest(req.Token, req.TimeToExpire, req.Owner, req.SurveyID, req.ParticipantsLimit, rewardPerUser, surveyHash, req.RewardDenom, gasAmount)
	s.writeDigest(w, digest, err)
}

func (s *Server) handleCancelProof(w http.ResponseWriter, r *http.Request) {
	var req cancelProofRequest
	if !s.decode(w, r, &req) {
		return
	}
	digest, err := survey.CancelSurveyDigest(req.Token, req.TimeToExpire, req.SurveyID)
	s.writeDigest(w, digest, err)
}

func (s *Server) handlePayProof(w http.ResponseWriter, r *http.Request) {
	var req payProofRequest
	if !s.decode(w, r, &req) {
		return
	}
	digest, err := survey.PayRewardsDigest(req.Token, req.TimeToExpire, req.SurveyIDs, req.Participants)
	s.writeDigest(w, digest, err)
}

// --- Callback handlers ---

func (s *Server) handleReplyCallback(w http.ResponseWriter, r *http.Request) {
	var req replyCallbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	packet, err := s.transfers.ResolveSequence(req.CorrelationID, req.Sequence)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.metrics.ObserveTransfer(packet.Status.String())
	s.writeJSON(w, http.StatusOK, newPacketResponse(*packet))
}

func (s *Server) handleAckCallback(w http.ResponseWriter, r *http.Request) {
	var req ackCallbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	var applied bool
	var err error
	if req.Success {
		applied, err = s.transfers.OnAckSuccess(req.ChannelID, req.Sequence)
	} else {
		applied, err = s.transfers.OnAckFailure(req.ChannelID, req.Sequence)
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if applied {
		status := transfer.StatusAckSuccess
		if !req.Success {
			status = transfer.StatusAckFailure
			s.metrics.ObserveRecovery()
		}
		s.metrics.ObserveTransfer(status.String())
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTimeoutCallback(w http.ResponseWriter, r *http.Request) {
	var req timeoutCallbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	applied, err := s.transfers.OnTimeout(req.ChannelID, req.Sequence)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if applied {
		s.metrics.ObserveTransfer(transfer.StatusTimedOut.String())
		s.metrics.ObserveRecovery()
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
