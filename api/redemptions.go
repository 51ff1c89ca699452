/*
Copyright 2025 Tally Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	model2 "github.com/tallyhq/tally/api/model"
	"github.com/tallyhq/tally/internal/apierror"

	"github.com/gin-gonic/gin"
)

// CreateRedemption handles a user's request to redeem a reward. The reward's
// points cost is placed on hold immediately; the redemption stays PENDING
// until an admin decides it.
//
// Responses:
// - 400 Bad Request: If the body is invalid or the user lacks the points.
// - 404 Not Found: If the reward code does not exist.
// - 201 Created: If the redemption is successfully created.
func (a Api) CreateRedemption(c *gin.Context) {
	var newRedemption model2.CreateRedemption
	if err := c.ShouldBindJSON(&newRedemption); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	err := newRedemption.ValidateCreateRedemption()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.tally.RequestRedemption(c.Request.Context(), newRedemption.UserID, newRedemption.RewardCode, newRedemption.MetaData)
	if err != nil {
		logrus.Error(err)
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// QueueRedemption accepts a redemption request and queues it for
// asynchronous processing. The response carries the redemption ID the
// client can poll while workers pick the request up.
func (a Api) QueueRedemption(c *gin.Context) {
	var newRedemption model2.CreateRedemption
	if err := c.ShouldBindJSON(&newRedemption); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	err := newRedemption.ValidateCreateRedemption()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.tally.QueueRedemption(c.Request.Context(), newRedemption.UserID, newRedemption.RewardCode, newRedemption.MetaData)
	if err != nil {
		logrus.Error(err)
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetRedemption retrieves a redemption by its ID.
func (a Api) GetRedemption(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.tally.GetRedemption(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetAllRedemptions retrieves a page of redemptions, optionally filtered by
// status. Pass the returned next_token back to fetch the following page.
func (a Api) GetAllRedemptions(c *gin.Context) {
	status := c.Query("status")
	nextToken := c.Query("next_token")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	redemptions, token, err := a.tally.GetRedemptions(c.Request.Context(), status, limit, nextToken)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"redemptions": redemptions}
	if token != "" {
		resp["next_token"] = token
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateRedemptionStatus applies an admin decision to a pending redemption.
// Replaying the same decision returns 200 with the stored record; a
// conflicting decision returns 409.
func (a Api) UpdateRedemptionStatus(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.UpdateRedemptionStatus
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := req.ValidateUpdateRedemptionStatus()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.tally.UpdateRedemptionStatus(c.Request.Context(), id, req.Status, req.Reason, req.UpdatedBy)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetRedemptionLedger retrieves the ledger entries written for a redemption.
func (a Api) GetRedemptionLedger(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.tally.GetRedemptionLedger(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
