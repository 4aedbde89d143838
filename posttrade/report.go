package posttrade

import "market-maker-sim/sim"

// Report 订阅仿真步结果，同时维护盈亏归因与逆向选择统计。
type Report struct {
	Attribution *Attribution
	Markouts    *Analyzer
}

func NewReport() *Report {
	return &Report{Attribution: NewAttribution(), Markouts: NewAnalyzer(0)}
}

// OnStep 实现 sim.Sink。先用本步 mid 补全历史成交，再登记本步新成交。
func (r *Report) OnStep(res sim.StepResult) {
	for _, rec := range res.Records {
		r.Markouts.OnMid(rec.Symbol, res.Step, rec.Mid)
	}
	for _, e := range res.Executions {
		r.Attribution.Add(e)
		r.Markouts.OnFill(res.Step, e)
	}
}
