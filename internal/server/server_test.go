package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/rberts/delibera/internal/config"
	"github.com/rberts/delibera/internal/middleware"
	"github.com/rberts/delibera/internal/storage/migrations"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migrations.Run(db))

	cfg := config.Load()
	cfg.Server.GinMode = "test"
	cfg.Auth.JWTSecret = testSecret

	return New(cfg, db, nil)
}

func managerToken(t *testing.T, tenantID uint) string {
	t.Helper()

	claims := middleware.Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/assemblies", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/assemblies", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAssemblyLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	token := managerToken(t, 1)

	rec := doJSON(t, srv, http.MethodPost, "/api/assemblies", token, map[string]interface{}{
		"title":         "Annual General Assembly",
		"location":      "Main Hall",
		"assembly_date": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"assembly_type": "ordinary",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data struct {
			ID     uint   `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "draft", created.Data.Status)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/assemblies/%d", created.Data.ID), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another tenant cannot see it.
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/assemblies/%d", created.Data.ID), managerToken(t, 2), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFullVotingFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	token := managerToken(t, 1)

	// Assembly
	rec := doJSON(t, srv, http.MethodPost, "/api/assemblies", token, map[string]interface{}{
		"title":         "Annual General Assembly",
		"location":      "Main Hall",
		"assembly_date": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"assembly_type": "extraordinary",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var assemblyResp struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assemblyResp))
	assemblyID := assemblyResp.Data.ID

	// Roster
	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/assemblies/%d/units", assemblyID), token, map[string]interface{}{
		"units": []map[string]interface{}{
			{"unit_number": "101", "owner_name": "Maria Souza", "ideal_fraction": 60.0, "tax_id": "52998224725"},
			{"unit_number": "102", "owner_name": "Joao Lima", "ideal_fraction": 40.0, "tax_id": "52998224725"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var unitsResp struct {
		Data []struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unitsResp))
	require.Len(t, unitsResp.Data, 2)

	// Credential
	rec = doJSON(t, srv, http.MethodPost, "/api/qrcodes", token, map[string]interface{}{
		"visual_numbers": []string{"042"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var credResp struct {
		Data []struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &credResp))
	voterToken := credResp.Data[0].Token

	// Open the session, then the agenda.
	rec = doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/assemblies/%d", assemblyID), token, map[string]interface{}{
		"status": "in_progress",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/assemblies/%d/agendas", assemblyID), token, map[string]interface{}{
		"title":   "Budget approval",
		"options": []string{"Approve", "Reject"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var agendaResp struct {
		Data struct {
			ID      uint `json:"id"`
			Options []struct {
				ID uint `json:"id"`
			} `json:"options"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agendaResp))

	rec = doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/agendas/%d", agendaResp.Data.ID), token, map[string]interface{}{
		"status": "open",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Check-in
	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/assemblies/%d/checkin", assemblyID), token, map[string]interface{}{
		"visual_number": "042",
		"unit_ids":      []uint{unitsResp.Data[0].ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Voter casts without a JWT.
	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/voting/%s/vote", voterToken), "", map[string]interface{}{
		"agenda_id": agendaResp.Data.ID,
		"option_id": agendaResp.Data.Options[0].ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// A second ballot conflicts.
	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/voting/%s/vote", voterToken), "", map[string]interface{}{
		"agenda_id": agendaResp.Data.ID,
		"option_id": agendaResp.Data.Options[1].ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Quorum and results reflect the single checked-in unit.
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/assemblies/%d/quorum", assemblyID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quorumResp struct {
		Data struct {
			PresentFraction float64 `json:"present_fraction"`
			HasQuorum       bool    `json:"has_quorum"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quorumResp))
	assert.InDelta(t, 60.0, quorumResp.Data.PresentFraction, 0.0001)
	assert.True(t, quorumResp.Data.HasQuorum)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/agendas/%d/results", agendaResp.Data.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resultsResp struct {
		Data struct {
			TotalUnitsVoted    int64   `json:"total_units_voted"`
			TotalFractionVoted float64 `json:"total_fraction_voted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resultsResp))
	assert.EqualValues(t, 1, resultsResp.Data.TotalUnitsVoted)
	assert.InDelta(t, 60.0, resultsResp.Data.TotalFractionVoted, 0.0001)

	// The voter's public status now reflects the cast ballot.
	rec = doJSON(t, srv, http.MethodGet, "/api/voting/"+voterToken+"/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var statusResp struct {
		Data struct {
			HasVoted bool `json:"has_voted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statusResp))
	assert.True(t, statusResp.Data.HasVoted)
}

func TestVoterStatusIsPublic(t *testing.T) {
	srv := newTestServer(t)
	token := managerToken(t, 1)

	rec := doJSON(t, srv, http.MethodPost, "/api/qrcodes", token, map[string]interface{}{
		"visual_numbers": []string{"042"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var credResp struct {
		Data []struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &credResp))

	// No JWT required, but a credential that never checked in is told to
	// wait for check-in.
	rec = doJSON(t, srv, http.MethodGet, "/api/voting/"+credResp.Data[0].Token+"/status", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "awaiting check-in")

	rec = doJSON(t, srv, http.MethodGet, "/api/voting/not-a-uuid/status", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
