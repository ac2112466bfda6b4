package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-zone-backend/internal/equipment"
	"checkout-zone-backend/internal/users"
)

type httpFixture struct {
	*fixture
	router    *gin.Engine
	requester string
	manager   string
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()

	userSvc := users.NewService(users.NewMemoryStore())
	requester, err := userSvc.Create(ctx, users.CreateUserRequest{
		Username: "jane.smith", Email: "jane@example.com", FirstName: "Jane", LastName: "Smith",
	})
	require.NoError(t, err)
	manager, err := userSvc.Create(ctx, users.CreateUserRequest{
		Username: "bob.manager", Email: "bob@example.com", FirstName: "Bob", LastName: "Manager",
	})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, f.svc, userSvc)

	return &httpFixture{fixture: f, router: r, requester: requester.UserID, manager: manager.UserID}
}

func (f *httpFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHTTP_CheckoutFlow(t *testing.T) {
	f := newHTTPFixture(t)
	f.addEquipment(t, "eq-a", equipment.CondGood)

	// 申請
	w := f.do(t, http.MethodPost, "/checkout/requests", gin.H{
		"user_id":       f.requester,
		"equipment_ids": []string{"eq-a"},
		"purpose":       "demo booth",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created RequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, "/checkout/requests/"+created.RequestID, w.Header().Get("Location"))

	// 承認
	w = f.do(t, http.MethodPost, "/checkout/requests/"+created.RequestID+"/approve", gin.H{
		"approver_id": f.manager,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// 払出
	w = f.do(t, http.MethodPost, "/checkout/requests/"+created.RequestID+"/fulfill", gin.H{
		"manager_id": f.manager,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var fulfilled struct {
		Records []RecordResponse `json:"records"`
		Total   int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fulfilled))
	require.Equal(t, 1, fulfilled.Total)

	// 貸出中一覧
	w = f.do(t, http.MethodGet, "/checkout/records/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Items []RecordResponse `json:"items"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Total)

	// 返却
	w = f.do(t, http.MethodPost, "/checkout/records/"+fulfilled.Records[0].RecordID+"/return", gin.H{
		"manager_id": f.manager,
		"condition":  "GOOD",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var returned RecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &returned))
	assert.False(t, returned.Open)
}

func TestHTTP_ErrorMapping(t *testing.T) {
	f := newHTTPFixture(t)
	f.addEquipment(t, "eq-a", equipment.CondGood)

	// 必須フィールド欠落 → 400
	w := f.do(t, http.MethodPost, "/checkout/requests", gin.H{"equipment_ids": []string{"eq-a"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 実在しない申請 → 404
	w = f.do(t, http.MethodGet, "/checkout/requests/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 実在しないユーザーによる申請 → 404
	w = f.do(t, http.MethodPost, "/checkout/requests", gin.H{
		"user_id":       "ghost",
		"equipment_ids": []string{"eq-a"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// PENDING でない申請への決裁 → 409
	created := f.do(t, http.MethodPost, "/checkout/requests", gin.H{
		"user_id":       f.requester,
		"equipment_ids": []string{"eq-a"},
	})
	require.Equal(t, http.StatusCreated, created.Code)
	var req RequestResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &req))

	w = f.do(t, http.MethodPost, "/checkout/requests/"+req.RequestID+"/reject", gin.H{"approver_id": f.manager})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodPost, "/checkout/requests/"+req.RequestID+"/approve", gin.H{"approver_id": f.manager})
	assert.Equal(t, http.StatusConflict, w.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_STATE", body.Error.Code)
}
