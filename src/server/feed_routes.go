package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"hive/src/models"
	"hive/src/services"
)

func (a *API) registerFeedRoutes(router *httprouter.Router) {
	router.GET("/groups/:group/posts", a.handle(a.listPosts))
	router.POST("/groups/:group/posts", a.handle(a.createPost))
	router.GET("/groups/:group/videos", a.handle(a.listCuratedVideos))
	router.GET("/posts/:post/moderation", a.handle(a.postModeration))
	router.PATCH("/posts/:post", a.handle(a.editPost))
	router.DELETE("/posts/:post", a.handle(a.deletePost))
	router.POST("/posts/:post/report", a.handle(a.reportPost))
	router.POST("/posts/:post/approve", a.handle(a.approvePost))
	router.PUT("/posts/:post/curation", a.handle(a.curateVideo))
}

func (a *API) listPosts(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	limit, err := queryInt(req, "limit")
	if err != nil {
		return err
	}
	parent := req.URL.Query().Get("parent")
	posts, err := a.Feed.ListPosts(req.Context(), caller, params.ByName("group"), parent, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
	return nil
}

func (a *API) createPost(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	var in services.PostInput
	if err := readJSON(req, &in, false); err != nil {
		return err
	}
	post, err := a.Feed.CreatePost(req.Context(), caller, params.ByName("group"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, post)
	return nil
}

func (a *API) listCuratedVideos(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	limit, err := queryInt(req, "limit")
	if err != nil {
		return err
	}
	posts, err := a.Feed.ListCuratedVideos(req.Context(), caller, params.ByName("group"), limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
	return nil
}

func (a *API) postModeration(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	moderation, err := a.Feed.ModerationFor(req.Context(), caller, params.ByName("post"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, moderation)
	return nil
}

func (a *API) editPost(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	var in services.EditInput
	if err := readJSON(req, &in, false); err != nil {
		return err
	}
	post, err := a.Feed.EditPost(req.Context(), caller, params.ByName("post"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, post)
	return nil
}

func (a *API) deletePost(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	if err := a.Feed.DeletePost(req.Context(), caller, params.ByName("post")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) reportPost(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	if err := a.throttled(caller); err != nil {
		return err
	}
	reported, err := a.Feed.ReportPost(req.Context(), caller, params.ByName("post"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reported": reported})
	return nil
}

func (a *API) approvePost(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	if err := a.Feed.ApprovePost(req.Context(), caller, params.ByName("post")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) curateVideo(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error {
	var in services.CurationInput
	if err := readJSON(req, &in, false); err != nil {
		return err
	}
	post, err := a.Feed.CurateVideo(req.Context(), caller, params.ByName("post"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, post)
	return nil
}
