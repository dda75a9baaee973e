package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"hive/src/models"
	"hive/src/services"
)

func (a *API) registerGroupRoutes(router *httprouter.Router) {
	router.POST("/groups", a.handle(a.createGroup))
	router.GET("/groups/:group", a.handle(a.getGroup))
	router.DELETE("/groups/:group", a.handle(a.deleteGroup))
	router.PATCH("/groups/:group/access", a.handle(a.updateAccess))
	router.GET("/groups/:group/role", a.handle(a.groupRole))
	router.GET("/groups/:group/members", a.handle(a.listMembers))
	router.POST("/groups/:group/join", a.handle(a.join))
	router.POST("/groups/:group/leave", a.handle(a.leave))
	router.GET("/groups/:group/join-state", a.handle(a.joinState))
	router.GET("/groups/:group/join-requests", a.handle(a.listJoinRequests))
	router.POST("/groups/:group/join-requests", a.handle(a.requestToJoin))
	router.POST("/groups/:group/join-requests/:user/approve", a.handle(a.approveJoinRequest))
	router.POST("/groups/:group/join-requests/:user/deny", a.handle(a.denyJoinRequest))
	router.DELETE("/groups/:group/join-requests/:user", a.handle(a.clearJoinRequest))
}

func (a *API) createGroup(w http.ResponseWriter, req *http.Request, caller models.Caller, _ httprouter.Params) error {
	var in services.GroupInput
	if err := readJSON(req, &in, false); err != nil {
		return err
	}
	group, err := a.Joins.CreateGroup(req.Context(), caller, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, group)
	return nil
}

func (a *API) getGroup(w http.ResponseWriter, req *http.Request, _ models.Caller, params httprouter.Params) error {
	group, err := a.Joins.GetGroup(req.Context(), params.ByName("group"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, group)
	return nil
}

func (a *API) deleteGroup(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	if err := a.Joins.DeleteGroup(req.Context(), caller, params.ByName("group")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) updateAccess(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	var in services.AccessInput
	if err := readJSON(req, &in, false); err != nil {
		return err
	}
	group, err := a.Joins.UpdateAccess(req.Context(), caller, params.ByName("group"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, group)
	return nil
}

func (a *API) groupRole(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	role := a.Roles.ClassifyRole(req.Context(), caller.UserID, params.ByName("group"))
	writeJSON(w, http.StatusOK, map[string]models.Role{"role": role})
	return nil
}

func (a *API) listMembers(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	members, err := a.Joins.ListMembers(req.Context(), caller, params.ByName("group"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
	return nil
}

type joinPayload struct {
	InviteCode string `json:"invite_code"`
}

func (a *API) join(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	var in joinPayload
	if err := readJSON(req, &in, true); err != nil {
		return err
	}
	role, err := a.Joins.Join(req.Context(), caller, params.ByName("group"), in.InviteCode)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]models.Role{"role": role})
	return nil
}

func (a *API) leave(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	if err := a.Joins.Leave(req.Context(), caller, params.ByName("group")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) joinState(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	state, err := a.Joins.JoinState(req.Context(), caller, params.ByName("group"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]models.JoinState{"state": state})
	return nil
}

func (a *API) listJoinRequests(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	requests, err := a.Joins.ListJoinRequests(req.Context(), caller, params.ByName("group"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
	return nil
}

func (a *API) requestToJoin(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	if err := a.throttled(caller); err != nil {
		return err
	}
	state, err := a.Joins.RequestToJoin(req.Context(), caller, params.ByName("group"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]models.JoinState{"state": state})
	return nil
}

func (a *API) approveJoinRequest(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	result, err := a.Joins.ApproveJoinRequest(req.Context(), caller, params.ByName("group"), params.ByName("user"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

func (a *API) denyJoinRequest(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	if err := a.Joins.DenyJoinRequest(req.Context(), caller, params.ByName("group"), params.ByName("user")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) clearJoinRequest(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	if err := a.Joins.ClearJoinRequest(req.Context(), caller, params.ByName("group"), params.ByName("user")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
