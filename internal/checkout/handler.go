package checkout

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout-zone-backend/internal/platform/apperr"
	"checkout-zone-backend/internal/users"
)

// Handler は貸出フローのHTTP窓口。
// 利用者IDの解決（実在・在籍チェック）はここで済ませ、エンジンにはIDだけを渡す。
type Handler struct {
	svc   *Service
	users *users.Service
}

func RegisterRoutes(r gin.IRoutes, svc *Service, userSvc *users.Service) {
	h := &Handler{svc: svc, users: userSvc}

	// 申請
	r.POST("/checkout/requests", h.CreateRequest)
	r.GET("/checkout/requests", h.ListRequests)
	r.GET("/checkout/requests/pending", h.ListPendingRequests)
	r.GET("/checkout/requests/user/:user_id", h.ListRequestsByUser)
	r.GET("/checkout/requests/:request_id", h.GetRequest)
	r.POST("/checkout/requests/:request_id/approve", h.ApproveRequest)
	r.POST("/checkout/requests/:request_id/reject", h.RejectRequest)
	r.POST("/checkout/requests/:request_id/fulfill", h.FulfillRequest)

	// 貸出記録
	r.POST("/checkout/records/:record_id/return", h.ReturnRecord)
	r.GET("/checkout/records/current", h.ListCurrentRecords)
	r.GET("/checkout/records/current/user/:user_id", h.ListCurrentRecordsByUser)
	r.GET("/checkout/records/equipment/:equipment_id", h.ListEquipmentHistory)
	r.GET("/checkout/records/:record_id", h.GetRecord)
}

func (h *Handler) CreateRequest(c *gin.Context) {
	var req CreateRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidRequest, "invalid json or missing required fields"))
		return
	}
	if _, err := h.users.RequireActive(c.Request.Context(), req.UserID); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	res, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.Header("Location", "/checkout/requests/"+res.RequestID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetRequest(c *gin.Context) {
	res, err := h.svc.GetRequest(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListRequests(c *gin.Context) {
	var f RequestFilter
	if v := c.Query("status"); v != "" {
		st := RequestStatus(v)
		f.Status = &st
	}
	items, err := h.svc.ListRequests(c.Request.Context(), f)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) ListPendingRequests(c *gin.Context) {
	st := StatusPending
	items, err := h.svc.ListRequests(c.Request.Context(), RequestFilter{Status: &st})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) ListRequestsByUser(c *gin.Context) {
	uid := c.Param("user_id")
	items, err := h.svc.ListRequests(c.Request.Context(), RequestFilter{UserID: &uid})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) ApproveRequest(c *gin.Context) {
	h.decide(c, h.svc.Approve)
}

func (h *Handler) RejectRequest(c *gin.Context) {
	h.decide(c, h.svc.Reject)
}

func (h *Handler) decide(c *gin.Context, fn func(ctx context.Context, requestID string, in DecisionInput) (RequestResponse, error)) {
	var req DecisionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidRequest, "invalid json or missing required fields"))
		return
	}
	if _, err := h.users.RequireActive(c.Request.Context(), req.ApproverID); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	res, err := fn(c.Request.Context(), c.Param("request_id"), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) FulfillRequest(c *gin.Context) {
	var req FulfillInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidRequest, "invalid json or missing required fields"))
		return
	}
	if _, err := h.users.RequireActive(c.Request.Context(), req.ManagerID); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	recs, err := h.svc.Fulfill(c.Request.Context(), c.Param("request_id"), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"records": recs, "total": len(recs)})
}

func (h *Handler) ReturnRecord(c *gin.Context) {
	var req ReturnInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidRequest, "invalid json or missing required fields"))
		return
	}
	if _, err := h.users.RequireActive(c.Request.Context(), req.ManagerID); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	res, err := h.svc.Return(c.Request.Context(), c.Param("record_id"), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetRecord(c *gin.Context) {
	res, err := h.svc.GetRecord(c.Request.Context(), c.Param("record_id"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListCurrentRecords(c *gin.Context) {
	items, err := h.svc.ListOpenRecords(c.Request.Context(), "")
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) ListCurrentRecordsByUser(c *gin.Context) {
	items, err := h.svc.ListOpenRecords(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) ListEquipmentHistory(c *gin.Context) {
	items, err := h.svc.ListEquipmentHistory(c.Request.Context(), c.Param("equipment_id"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}
