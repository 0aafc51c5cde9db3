package handlers

import "net/http"

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Videos        VideoStore
	Tweets        TweetStore
	Comments      CommentStore
	Likes         LikeStore
	Subscriptions SubscriptionStore
	Views         ViewStore
	Blobs         BlobStore
	AuthLimiter   RateLimiter

	HistoryDedupe bool
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Blobs: deps.Blobs, Limiter: deps.AuthLimiter}
	videos := VideoHandler{Videos: deps.Videos, Users: deps.Users, Views: deps.Views, Blobs: deps.Blobs, HistoryDedupe: deps.HistoryDedupe}
	tweets := TweetHandler{Tweets: deps.Tweets}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos}
	likes := LikeHandler{Likes: deps.Likes, Views: deps.Views}
	channels := ChannelHandler{Views: deps.Views, Subscriptions: deps.Subscriptions}

	sessions := deps.Sessions

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/users/register", auth.Register)
	mux.HandleFunc("POST /api/v1/users/login", auth.Login)
	mux.HandleFunc("POST /api/v1/users/logout", RequireAuth(sessions, auth.Logout))
	mux.HandleFunc("POST /api/v1/users/refresh-token", auth.Refresh)
	mux.HandleFunc("POST /api/v1/users/change-password", RequireAuth(sessions, auth.ChangePassword))
	mux.HandleFunc("GET /api/v1/users/me", RequireAuth(sessions, auth.Me))
	mux.HandleFunc("PATCH /api/v1/users/me", RequireAuth(sessions, auth.UpdateAccount))
	mux.HandleFunc("PATCH /api/v1/users/avatar", RequireAuth(sessions, auth.UpdateAvatar))
	mux.HandleFunc("PATCH /api/v1/users/cover-image", RequireAuth(sessions, auth.UpdateCoverImage))
	mux.HandleFunc("GET /api/v1/users/history", RequireAuth(sessions, channels.WatchHistory))

	mux.HandleFunc("GET /api/v1/channels/{username}", OptionalAuth(sessions, channels.Profile))
	mux.HandleFunc("POST /api/v1/subscriptions/toggle/{channelId}", RequireAuth(sessions, channels.ToggleSubscription))

	mux.HandleFunc("GET /api/v1/videos", videos.List)
	mux.HandleFunc("POST /api/v1/videos", RequireAuth(sessions, videos.Publish))
	mux.HandleFunc("GET /api/v1/videos/{id}", OptionalAuth(sessions, videos.Get))
	mux.HandleFunc("PATCH /api/v1/videos/{id}", RequireAuth(sessions, videos.Update))
	mux.HandleFunc("DELETE /api/v1/videos/{id}", RequireAuth(sessions, videos.Delete))
	mux.HandleFunc("POST /api/v1/videos/{id}/toggle-publish", RequireAuth(sessions, videos.TogglePublish))

	mux.HandleFunc("POST /api/v1/tweets", RequireAuth(sessions, tweets.Create))
	mux.HandleFunc("GET /api/v1/tweets/user/{userId}", tweets.ListByUser)
	mux.HandleFunc("PATCH /api/v1/tweets/{id}", RequireAuth(sessions, tweets.Update))
	mux.HandleFunc("DELETE /api/v1/tweets/{id}", RequireAuth(sessions, tweets.Delete))

	mux.HandleFunc("POST /api/v1/comments/video/{videoId}", RequireAuth(sessions, comments.Create))
	mux.HandleFunc("GET /api/v1/comments/video/{videoId}", OptionalAuth(sessions, comments.ListByVideo))
	mux.HandleFunc("DELETE /api/v1/comments/{id}", RequireAuth(sessions, comments.Delete))

	mux.HandleFunc("POST /api/v1/likes/toggle/{kind}/{id}", RequireAuth(sessions, likes.Toggle))
	mux.HandleFunc("GET /api/v1/likes/videos", RequireAuth(sessions, likes.LikedVideos))
}
