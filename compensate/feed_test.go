// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package compensate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porta-network/porta-staking/porta"
)

func TestHTTPFeedFetch(t *testing.T) {
	vaultID := porta.BytesToAddress([]byte("vault1"))
	alice := porta.BytesToAddress([]byte("alice"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, vaultID.String(), r.URL.Query().Get("vault"))
		assert.Equal(t, "1000", r.URL.Query().Get("from"))
		fmt.Fprintf(w, `{"status":"1","result":[
			{"id":"0xa","vault":"%s","recipient":"%s","marker":1002,"amount":50}
		]}`, vaultID, alice)
	}))
	defer srv.Close()

	events, err := NewHTTPFeed(srv.URL).Fetch(context.Background(), vaultID, 1000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "0xa", events[0].ID)
	assert.Equal(t, alice, events[0].Recipient)
	assert.Equal(t, uint64(1002), events[0].Marker)
	assert.Equal(t, uint64(50), events[0].Amount)
}

func TestHTTPFeedRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHTTPFeed(srv.URL).Fetch(context.Background(), porta.Address{}, 0)
	assert.Error(t, err)
}
