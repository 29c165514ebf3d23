package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todo-api/domain"
)

const (
	msgTodoNotFound = "Todo not found"
	msgUserNotFound = "User not found"
)

// Deps are the collaborators of the HTTP handlers. Deduper is optional.
type Deps struct {
	Todos   TodoService
	Users   UserService
	Auth    Authenticator
	Tokens  TokenIssuer
	Deduper Deduper
	Logger  *log.Logger
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	if d.Logger == nil {
		d.Logger = log.StandardLogger()
	}
	requireUser := RequireUser(d.Auth)

	e.GET("/healthz", healthz)

	auth := e.Group("/api/auth")
	auth.POST("/register", register(d))
	auth.POST("/login", login(d))
	auth.GET("/me", me(d), requireUser)

	users := e.Group("/api/users", requireUser)
	users.GET("", listUsers(d))
	users.GET("/:id", getUser(d))

	todos := e.Group("/api/todos", requireUser)
	todos.GET("", listTodos(d))
	todos.POST("", createTodo(d))
	todos.GET("/export", exportTodos(d))
	todos.GET("/:id", getTodo(d))
	todos.PUT("/:id", updateTodo(d))
	todos.PATCH("/:id", updateTodo(d))
	todos.DELETE("/:id", deleteTodo(d))
	todos.POST("/:id/notes", addNote(d))
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

func register(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.RegisterInput
		if err := decodeBody(c, &in); err != nil {
			return writeError(c, d.Logger, err, "")
		}
		user, err := d.Users.Register(c.Request().Context(), in)
		if err != nil {
			return writeError(c, d.Logger, err, "")
		}
		token, err := d.Tokens.IssueToken(user.ID)
		if err != nil {
			return writeError(c, d.Logger, err, "")
		}
		d.Logger.WithField("user", user.ID).Info("user registered")
		return respond(c, http.StatusCreated, authResponse{User: user, Token: token})
	}
}

func login(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.LoginInput
		if err := decodeBody(c, &in); err != nil {
			return writeError(c, d.Logger, err, "")
		}
		if strings.TrimSpace(in.Username) == "" || in.Password == "" {
			return fail(c, http.StatusBadRequest, "Please provide username and password")
		}
		user, err := d.Users.Authenticate(c.Request().Context(), in.Username, in.Password)
		if err != nil {
			return writeError(c, d.Logger, err, "")
		}
		token, err := d.Tokens.IssueToken(user.ID)
		if err != nil {
			return writeError(c, d.Logger, err, "")
		}
		return respond(c, http.StatusOK, authResponse{User: user, Token: token})
	}
}

func me(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := d.Users.Get(c.Request().Context(), currentUserID(c))
		if err != nil {
			return writeError(c, d.Logger, err, msgUserNotFound)
		}
		return respond(c, http.StatusOK, user)
	}
}

func listUsers(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := d.Users.List(c.Request().Context())
		if err != nil {
			return writeError(c, d.Logger, err, "")
		}
		return respond(c, http.StatusOK, users)
	}
}

func getUser(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := d.Users.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, d.Logger, err, msgUserNotFound)
		}
		return respond(c, http.StatusOK, user)
	}
}

func listTodos(d Deps) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTodoRequestMetrics(ctx, d.Logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		q, err := parseTodoQuery(c)
		if err != nil {
			metrics.SetErrorStage("invalid_query")
			return writeError(c, d.Logger, err, "")
		}
		metrics.SetFiltered(filtered(q.Filter))

		fetchStart := time.Now()
		page, err := d.Todos.List(ctx, currentUserID(c), q)
		metrics.ObserveFetch(time.Since(fetchStart))
		if err != nil {
			metrics.SetErrorStage("query")
			return writeError(c, d.Logger, err, "")
		}
		metrics.SetResult(page.Pagination.Page, len(page.Todos), page.Pagination.Total)

		encodeStart := time.Now()
		err = respond(c, http.StatusOK, page)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getTodo(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		todo, err := d.Todos.Get(c.Request().Context(), currentUserID(c), c.Param("id"))
		if err != nil {
			return writeError(c, d.Logger, err, msgTodoNotFound)
		}
		return respond(c, http.StatusOK, todo)
	}
}

// createTodo stores a new todo. A repeated Idempotency-Key from the same user
// is rejected until the key expires; the key is released when creation fails.
func createTodo(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID := currentUserID(c)

		var in domain.CreateTodoInput
		if err := decodeBody(c, &in); err != nil {
			return writeError(c, d.Logger, err, "")
		}

		key := strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader))
		if key != "" && d.Deduper != nil {
			added, err := d.Deduper.Add(ctx, userID, key)
			if err != nil {
				return writeError(c, d.Logger, err, "")
			}
			if !added {
				return writeError(c, d.Logger, errDuplicateRequest, "")
			}
		}

		todo, err := d.Todos.Create(ctx, userID, in)
		if err != nil {
			if key != "" && d.Deduper != nil {
				if rerr := d.Deduper.Remove(ctx, userID, key); rerr != nil {
					d.Logger.WithError(rerr).WithField("key", key).Warn("release idempotency key")
				}
			}
			return writeError(c, d.Logger, err, "")
		}
		return respond(c, http.StatusCreated, todo)
	}
}

func updateTodo(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.UpdateTodoInput
		if err := decodeBody(c, &in); err != nil {
			return writeError(c, d.Logger, err, "")
		}
		todo, err := d.Todos.Update(c.Request().Context(), currentUserID(c), c.Param("id"), in)
		if err != nil {
			return writeError(c, d.Logger, err, msgTodoNotFound)
		}
		return respond(c, http.StatusOK, todo)
	}
}

func deleteTodo(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := d.Todos.Delete(c.Request().Context(), currentUserID(c), c.Param("id")); err != nil {
			return writeError(c, d.Logger, err, msgTodoNotFound)
		}
		return respondMessage(c, http.StatusOK, "Todo deleted successfully")
	}
}

func addNote(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.AddNoteInput
		if err := decodeBody(c, &in); err != nil {
			return writeError(c, d.Logger, err, "")
		}
		todo, err := d.Todos.AddNote(c.Request().Context(), currentUserID(c), c.Param("id"), in)
		if err != nil {
			return writeError(c, d.Logger, err, msgTodoNotFound)
		}
		return respond(c, http.StatusOK, todo)
	}
}

func exportTodos(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		export, err := d.Todos.Export(c.Request().Context(), currentUserID(c))
		if err != nil {
			return writeError(c, d.Logger, err, "")
		}
		return respond(c, http.StatusOK, export)
	}
}
