package eval

import (
	"context"
	"fmt"
	"time"

	log "github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/mkorolev/sitegate/pkg/config"
)

// Runner executes the full evaluation: health check, paced questioning,
// judging, report.
type Runner struct {
	cfg     config.EvalConfig
	persona string
	client  *Client
	judge   *Judge
	limiter *rate.Limiter
}

func NewRunner(cfg config.EvalConfig, judgeAPIKey, persona string) *Runner {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Runner{
		cfg:     cfg,
		persona: persona,
		client:  NewClient(cfg.TargetURL),
		judge:   NewJudge(judgeAPIKey, cfg.JudgeModel),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	if err := r.client.Health(ctx); err != nil {
		return fmt.Errorf("target %s is not healthy: %w", r.cfg.TargetURL, err)
	}

	questions, err := LoadQuestions(r.cfg.QuestionsPath)
	if err != nil {
		return err
	}
	log.Info("starting evaluation", "target", r.cfg.TargetURL, "questions", len(questions), "judge", r.cfg.JudgeModel)

	results := make([]Result, 0, len(questions))
	for i, q := range questions {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		log.Info("asking", "n", i+1, "category", q.Category)

		answer, err := r.client.Ask(ctx, q.Text)
		if err != nil {
			log.Warn("question failed", "n", i+1, "err", err)
			results = append(results, Result{Question: q, Answer: answer, Err: err})
			continue
		}

		eval, err := r.judge.Evaluate(ctx, r.persona, q, answer)
		if err != nil {
			log.Warn("judging failed", "n", i+1, "err", err)
			results = append(results, Result{Question: q, Answer: answer, Err: err})
			continue
		}
		log.Info("judged", "n", i+1, "verdict", eval.Verdict, "score", eval.Score)
		results = append(results, Result{Question: q, Answer: answer, Eval: eval})
	}

	if err := WriteReport(r.cfg.ReportPath, r.cfg.TargetURL, time.Now(), results); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info("report written", "path", r.cfg.ReportPath)
	return nil
}
