package gateway

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"surveychain/core/state"
	"surveychain/crypto"
	"surveychain/native/survey"
	"surveychain/native/transfer"
	"surveychain/storage"
)

const (
	testPrefix = "svy"
	testDenom  = "usvy"
)

func testAddress(fill byte) string {
	return crypto.NewAddress(testPrefix, bytes.Repeat([]byte{fill}, 20)).String()
}

type testEnv struct {
	server     *httptest.Server
	manager    *state.Manager
	surveys    *survey.Engine
	transfers  *transfer.Engine
	managerKey ed25519.PrivateKey
	owner      string
	creator    string
	contract   string
	now        int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate manager key: %v", err)
	}

	manager := state.NewManager(storage.NewMemDB())
	env := &testEnv{
		manager:    manager,
		managerKey: priv,
		owner:      testAddress(0x01),
		creator:    testAddress(0x10),
		contract:   testAddress(0x03),
		now:        1_700_000_000,
	}

	transfers := transfer.NewEngine("channel-0", testAddress(0x05))
	transfers.SetState(manager)
	transfers.SetNowFunc(func() int64 { return env.now })
	env.transfers = transfers

	surveys := survey.NewEngine()
	surveys.SetState(manager)
	surveys.SetTransfers(transfers)
	surveys.SetNowFunc(func() int64 { return env.now })
	env.surveys = surveys

	params := &survey.Params{
		Owner:           env.owner,
		GasStation:      testAddress(0x02),
		ContractAddress: env.contract,
		ReceiverPrefix:  testPrefix,
		ChannelID:       "channel-0",
		RewardDenom:     testDenom,
	}
	managers := []survey.ManagerInfo{{Address: testAddress(0x04), PubKey: pub}}
	if err := surveys.Bootstrap(params, managers); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	srv := NewServer(surveys, transfers, nil, nil)
	env.server = httptest.NewServer(srv.Router())
	t.Cleanup(env.server.Close)
	return env
}

func (env *testEnv) post(t *testing.T, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(env.server.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	return resp
}

func (env *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(env.server.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (env *testEnv) proof(t *testing.T, token string, digest [32]byte) proofFields {
	t.Helper()
	return proofFields{
		Signature:     base64.StdEncoding.EncodeToString(ed25519.Sign(env.managerKey, digest[:])),
		Token:         token,
		TimeToExpire:  uint64(env.now) + 300,
		ManagerPubKey: base64.StdEncoding.EncodeToString(env.managerKey.Public().(ed25519.PublicKey)),
	}
}

func (env *testEnv) createSurvey(t *testing.T, token, surveyID string, limit uint32, reward int64) {
	t.Helper()
	attached := int64(limit) * reward
	if err := env.manager.Credit(env.creator, testDenom, big.NewInt(attached)); err != nil {
		t.Fatalf("credit creator: %v", err)
	}
	hash := []byte("content-hash")
	digest, err := survey.CreateSurveyDigest(token, uint64(env.now)+300, env.creator, surveyID, limit, big.NewInt(reward), hash, testDenom, nil)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	req := createSurveyRequest{
		proofFields:       env.proof(t, token, digest),
		Owner:             env.creator,
		SurveyID:          surveyID,
		ParticipantsLimit: limit,
		RewardPerUser:     fmt.Sprintf("%d", reward),
		SurveyHash:        base64.StdEncoding.EncodeToString(hash),
		AttachedAmount:    fmt.Sprintf("%d", attached),
	}
	resp := env.post(t, "/survey/create", req)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
}

func TestCreateAndQuerySurvey(t *testing.T) {
	env := newTestEnv(t)
	env.createSurvey(t, "tok-1", "survey-1", 10, 100)

	var got surveyResponse
	decodeBody(t, env.get(t, "/survey/survey-1"), &got)
	if got.SurveyID != "survey-1" || got.RewardPerUser != "100" || got.AmountToFund != "1000" {
		t.Fatalf("response = %+v", got)
	}
	if got.IsCancelled || got.ParticipantsRewarded != 0 {
		t.Fatalf("response = %+v", got)
	}

	var fund map[string]string
	decodeBody(t, env.get(t, "/survey/survey-1/amount-to-fund"), &fund)
	if fund["amount_to_fund"] != "1000" {
		t.Fatalf("amount to fund = %+v", fund)
	}

	resp := env.get(t, "/survey/missing")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing survey status = %d", resp.StatusCode)
	}
}

func TestDuplicateCreateMapsToConflict(t *testing.T) {
	env := newTestEnv(t)
	env.createSurvey(t, "tok-1", "survey-1", 2, 50)

	digest, err := survey.CreateSurveyDigest("tok-2", uint64(env.now)+300, env.creator, "survey-1", 2, big.NewInt(50), nil, testDenom, nil)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	req := createSurveyRequest{
		proofFields:       env.proof(t, "tok-2", digest),
		Owner:             env.creator,
		SurveyID:          "survey-1",
		ParticipantsLimit: 2,
		RewardPerUser:     "50",
		AttachedAmount:    "100",
	}
	resp := env.post(t, "/survey/create", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate create status = %d", resp.StatusCode)
	}
}

func TestPayRewardsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.createSurvey(t, "tok-1", "survey-1", 10, 100)

	alice := testAddress(0x20)
	digest, err := survey.PayRewardsDigest("tok-2", uint64(env.now)+300, []string{"survey-1"}, []string{alice})
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	req := payRewardsRequest{
		proofFields:  env.proof(t, "tok-2", digest),
		SurveyIDs:    []string{"survey-1"},
		Participants: []string{alice},
	}
	var result map[string]string
	decodeBody(t, env.post(t, "/survey/pay-rewards", req), &result)
	if result["total"] != "100" {
		t.Fatalf("result = %+v", result)
	}

	var claimed map[string]bool
	decodeBody(t, env.get(t, "/survey/survey-1/claimed/"+alice), &claimed)
	if !claimed["has_claimed"] {
		t.Fatalf("claimed = %+v", claimed)
	}

	var paid map[string]string
	decodeBody(t, env.get(t, "/survey/survey-1/rewards-paid"), &paid)
	if paid["amount_rewards_paid"] != "100" {
		t.Fatalf("rewards paid = %+v", paid)
	}
}

func TestProofDigestEndpoint(t *testing.T) {
	env := newTestEnv(t)
	req := cancelProofRequest{Token: "tok-1", TimeToExpire: 12345, SurveyID: "survey-1"}
	var got map[string]string
	decodeBody(t, env.post(t, "/proofs/cancel-survey", req), &got)

	want, err := survey.CancelSurveyDigest("tok-1", 12345, "survey-1")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if got["digest"] != hex.EncodeToString(want[:]) {
		t.Fatalf("digest = %q, want %q", got["digest"], hex.EncodeToString(want[:]))
	}
}

func TestTransferCallbacksOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	recipient := testAddress(0x21)
	if err := env.manager.Credit(env.contract, testDenom, big.NewInt(500)); err != nil {
		t.Fatalf("credit contract: %v", err)
	}
	correlationID, err := env.transfers.Dispatch(env.contract, recipient, testDenom, big.NewInt(500))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	var packet packetResponse
	decodeBody(t, env.post(t, "/callbacks/reply", replyCallbackRequest{CorrelationID: correlationID, Sequence: 9}), &packet)
	if packet.Sequence != 9 || packet.Status != "sent" {
		t.Fatalf("packet = %+v", packet)
	}

	resp := env.post(t, "/callbacks/reply", replyCallbackRequest{CorrelationID: "unknown", Sequence: 10})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown correlation status = %d", resp.StatusCode)
	}

	resp = env.post(t, "/callbacks/timeout", timeoutCallbackRequest{ChannelID: "channel-0", Sequence: 9})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("timeout status = %d", resp.StatusCode)
	}

	var tracked packetResponse
	decodeBody(t, env.get(t, "/transfers/channel-0/9"), &tracked)
	if tracked.Status != "timed_out" {
		t.Fatalf("tracked = %+v", tracked)
	}

	var recoverable []packetResponse
	decodeBody(t, env.get(t, "/recovery/"+recipient), &recoverable)
	if len(recoverable) != 1 || recoverable[0].Amount != "500" {
		t.Fatalf("recoverable = %+v", recoverable)
	}

	// A repeated timeout callback is accepted but must not append another
	// recovery entry.
	resp = env.post(t, "/callbacks/timeout", timeoutCallbackRequest{ChannelID: "channel-0", Sequence: 9})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicate timeout status = %d", resp.StatusCode)
	}
	decodeBody(t, env.get(t, "/recovery/"+recipient), &recoverable)
	if len(recoverable) != 1 {
		t.Fatalf("recoverable after duplicate = %+v", recoverable)
	}
}

func TestAdminEndpointsAreOwnerGated(t *testing.T) {
	env := newTestEnv(t)
	newGas := testAddress(0x30)

	resp := env.post(t, "/admin/set-gas-station", setGasStationRequest{Caller: testAddress(0x40), GasStation: newGas})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger status = %d", resp.StatusCode)
	}

	resp = env.post(t, "/admin/set-gas-station", setGasStationRequest{Caller: env.owner, GasStation: newGas})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner status = %d", resp.StatusCode)
	}

	var params map[string]string
	decodeBody(t, env.get(t, "/params"), &params)
	if params["gas_station"] != newGas {
		t.Fatalf("params = %+v", params)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "/healthz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestMalformedJSONRejected(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Post(env.server.URL+"/survey/create", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
