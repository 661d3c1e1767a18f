package controllerImp

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"acao/pkg/solver"
)

var appStart = time.Now()

type HealthCtrl struct {
	db       *gorm.DB
	backends []solver.Solver
}

func NewHealthCtrl(db *gorm.DB, backends ...solver.Solver) *HealthCtrl {
	return &HealthCtrl{db: db, backends: backends}
}

// selfTest is max x + y with x + y <= 1 and y binary; every backend must reach 1.
func selfTest() *solver.Model {
	m := &solver.Model{}
	x := m.AddVar(solver.Var{Name: "x", Obj: 1, Upper: 1})
	y := m.AddVar(solver.Var{Name: "y", Obj: 1, Upper: 1, Integer: true})
	m.AddRow(solver.Row{Name: "cap", Terms: []solver.Term{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, Sense: solver.LE, RHS: 1})
	return m
}

func (h *HealthCtrl) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 800*time.Millisecond)
	defer cancel()

	type sub struct {
		OK  bool   `json:"ok"`
		Err string `json:"err,omitempty"`
	}
	checks := map[string]any{}

	dbOK := true
	dbErr := ""
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil {
			dbOK = false
			dbErr = "db.DB(): " + err.Error()
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbOK = false
			dbErr = "ping: " + err.Error()
		}
	} else {
		dbOK = false
		dbErr = "gorm db is nil"
	}
	checks["database"] = sub{OK: dbOK, Err: dbErr}

	allOK := dbOK
	for _, b := range h.backends {
		res, err := b.Solve(ctx, selfTest())
		s := sub{OK: err == nil && res.HasSolution() && res.Objective > 1-1e-6 && res.Objective < 1+1e-6}
		if err != nil {
			s.Err = err.Error()
		} else if !s.OK {
			s.Err = "self-test status " + res.Status.String()
		}
		checks["solver:"+b.Name()] = s
		allOK = allOK && s.OK
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	resp := map[string]any{
		"status":     map[string]any{"ok": allOK},
		"uptime_sec": int(time.Since(appStart).Seconds()),
		"checks":     checks,
		"time":       time.Now().Format(time.RFC3339),
	}
	return c.JSON(status, resp)
}
