package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"hive/src/models"
	"hive/src/services"
)

func (a *API) registerEventRoutes(router *httprouter.Router) {
	router.GET("/groups/:group/events", a.handle(a.listEvents))
	router.POST("/groups/:group/events", a.handle(a.createEvent))
	router.GET("/events/:event", a.handle(a.getEvent))
	router.PUT("/events/:event", a.handle(a.updateEvent))
	router.DELETE("/events/:event", a.handle(a.deleteEvent))
	router.POST("/events/:event/publish", a.handle(a.publishEvent))
}

func (a *API) listEvents(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	startsAfter, err := queryInt64Ptr(req, "starts_after")
	if err != nil {
		return err
	}
	limit, err := queryInt(req, "limit")
	if err != nil {
		return err
	}
	events, err := a.Events.ListEvents(req.Context(), caller, params.ByName("group"), startsAfter, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
	return nil
}

func (a *API) createEvent(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	var in services.EventInput
	if err := readJSON(req, &in, false); err != nil {
		return err
	}
	result, err := a.Events.CreateEvent(req.Context(), caller, params.ByName("group"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, result)
	return nil
}

func (a *API) getEvent(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	event, err := a.Events.GetEvent(req.Context(), caller, params.ByName("event"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, event)
	return nil
}

func (a *API) updateEvent(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	var in services.EventInput
	if err := readJSON(req, &in, false); err != nil {
		return err
	}
	result, err := a.Events.UpdateEvent(req.Context(), caller, params.ByName("event"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

func (a *API) deleteEvent(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	if err := a.Events.DeleteEvent(req.Context(), caller, params.ByName("event")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) publishEvent(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	result, err := a.Events.PublishEvent(req.Context(), caller, params.ByName("event"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}
