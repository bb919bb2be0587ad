// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package campaigns

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porta-network/porta-staking/clock"
	"github.com/porta-network/porta-staking/ledger"
	"github.com/porta-network/porta-staking/porta"
	"github.com/porta-network/porta-staking/registry"
	"github.com/porta-network/porta-staking/vault"
)

const testAsset = porta.Asset("PORTA")

var (
	hubID = porta.BytesToAddress([]byte("hub"))
	admin = porta.BytesToAddress([]byte("admin"))
	alice = porta.BytesToAddress([]byte("alice"))
)

type testServer struct {
	srv   *httptest.Server
	reg   *registry.Registry
	clk   *clock.Manual
	funds *ledger.Mem
}

func initServer(t *testing.T) *testServer {
	t.Helper()

	clk := clock.NewManual(porta.RewardAnchor)
	funds := ledger.NewMem()
	funds.Mint(testAsset, hubID, 100000)
	funds.Mint(testAsset, alice, 100000)

	reg := registry.New(hubID, testAsset, admin, clk, funds)

	router := mux.NewRouter()
	New(reg).Mount(router, "/campaigns")
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, reg: reg, clk: clk, funds: funds}
}

func (ts *testServer) httpGet(t *testing.T, path string) ([]byte, int) {
	t.Helper()

	res, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	return body, res.StatusCode
}

func (ts *testServer) httpPost(t *testing.T, path string, obj interface{}) ([]byte, int) {
	t.Helper()

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	res, err := http.Post(ts.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	return body, res.StatusCode
}

func testConfig() vault.Config {
	return vault.Config{
		Title:            "api test",
		AnnualRateBps:    5000,
		MaxTotalStake:    10000,
		StartTime:        porta.RewardAnchor,
		EndTime:          porta.RewardAnchor + 20*porta.SecondsPerDay,
		MinStakeDuration: porta.SecondsPerDay,
		MinStakeAmount:   100,
		MaxStakeAmount:   5000,
	}
}

func createCampaign(t *testing.T, ts *testServer) porta.Address {
	t.Helper()

	body, code := ts.httpPost(t, "/campaigns", CreateRequest{Caller: admin, Config: testConfig()})
	require.Equal(t, http.StatusOK, code, string(body))

	var sum Summary
	require.NoError(t, json.Unmarshal(body, &sum))
	return sum.ID
}

func TestCreateAndList(t *testing.T) {
	ts := initServer(t)

	body, code := ts.httpGet(t, "/campaigns")
	require.Equal(t, http.StatusOK, code)
	var list []Summary
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Empty(t, list)

	id := createCampaign(t, ts)

	body, code = ts.httpGet(t, "/campaigns")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "active", list[0].Status)

	body, code = ts.httpGet(t, "/campaigns/"+id.String())
	require.Equal(t, http.StatusOK, code)
	var detail Detail
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.Equal(t, "api test", detail.Config.Title)
	assert.False(t, detail.Finalized)
}

func TestCreateRequiresAdmin(t *testing.T) {
	ts := initServer(t)

	_, code := ts.httpPost(t, "/campaigns", CreateRequest{Caller: alice, Config: testConfig()})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestGetUnknownCampaign(t *testing.T) {
	ts := initServer(t)

	_, code := ts.httpGet(t, "/campaigns/"+porta.BytesToAddress([]byte("nope")).String())
	assert.Equal(t, http.StatusNotFound, code)

	_, code = ts.httpGet(t, "/campaigns/zzzz")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStakeLifecycle(t *testing.T) {
	ts := initServer(t)
	id := createCampaign(t, ts)
	base := fmt.Sprintf("/campaigns/%s", id)

	body, code := ts.httpPost(t, base+"/deposits", StakeRequest{Owner: alice, Amount: 1000})
	require.Equal(t, http.StatusOK, code, string(body))
	var info vault.AccountInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, uint64(1000), info.StakeAmount)

	body, code = ts.httpGet(t, base+"/accounts/"+alice.String())
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, uint64(1000), info.StakeAmount)

	// lock still active
	_, code = ts.httpPost(t, base+"/withdrawals", StakeRequest{Owner: alice, Amount: 1000})
	assert.Equal(t, http.StatusBadRequest, code)

	ts.clk.Advance(2 * porta.SecondsPerDay)

	body, code = ts.httpPost(t, base+"/claims", ClaimRequest{Owner: alice})
	require.Equal(t, http.StatusOK, code, string(body))
	var claim map[string]uint64
	require.NoError(t, json.Unmarshal(body, &claim))
	assert.NotZero(t, claim["reward"])

	body, code = ts.httpPost(t, base+"/withdrawals", StakeRequest{Owner: alice, Amount: 1000})
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Zero(t, info.StakeAmount)
}

func TestDepositBounds(t *testing.T) {
	ts := initServer(t)
	id := createCampaign(t, ts)
	base := fmt.Sprintf("/campaigns/%s", id)

	_, code := ts.httpPost(t, base+"/deposits", StakeRequest{Owner: alice, Amount: 50})
	assert.Equal(t, http.StatusBadRequest, code)

	_, code = ts.httpPost(t, base+"/deposits", StakeRequest{Owner: alice, Amount: 6000})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestFinalWithdraw(t *testing.T) {
	ts := initServer(t)
	id := createCampaign(t, ts)
	base := fmt.Sprintf("/campaigns/%s", id)

	// campaign still running
	_, code := ts.httpPost(t, base+"/final-withdrawals", ClaimRequest{Owner: admin})
	assert.Equal(t, http.StatusBadRequest, code)

	ts.clk.Advance(21 * porta.SecondsPerDay)

	_, code = ts.httpPost(t, base+"/final-withdrawals", ClaimRequest{Owner: alice})
	assert.Equal(t, http.StatusForbidden, code)

	body, code := ts.httpPost(t, base+"/final-withdrawals", ClaimRequest{Owner: admin})
	require.Equal(t, http.StatusOK, code, string(body))
	var swept map[string]uint64
	require.NoError(t, json.Unmarshal(body, &swept))
	assert.NotZero(t, swept["swept"])
}
