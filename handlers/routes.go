package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the auth and chat endpoints under /api.
// queries may be nil when no database is configured.
func RegisterRoutes(r *gin.Engine, chat *ChatHandler, auth *AuthHandler, queries *QueryLogHandler, tokens TokenValidator) {
	api := r.Group("/api")
	{
		// Auth endpoints
		api.POST("/auth/login", auth.Login)
		api.POST("/auth/signup", auth.Signup)

		// Chat endpoints
		chatGroup := api.Group("/chat", AuthRequired(tokens))
		chatGroup.POST("/ask", chat.Ask)
		chatGroup.GET("/history", chat.GetHistory)
		chatGroup.DELETE("/history", chat.ClearHistory)
		chatGroup.GET("/suggestions", chat.Suggestions)

		// Export endpoints
		chatGroup.GET("/export/answer.md", chat.ExportAnswerMarkdown)
		chatGroup.GET("/export/answer.html", chat.ExportAnswerHTML)
		chatGroup.GET("/export/chat.json", chat.ExportChatJSON)
		chatGroup.GET("/export/chat.md", chat.ExportChatMarkdown)

		if queries != nil {
			chatGroup.GET("/queries", queries.List)
		}
	}
}
