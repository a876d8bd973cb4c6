// Package prompt は生成APIへ送るプロンプトを組み立てる。
// すべての関数は純粋で、同じ入力に対して同じ文字列を返す。
package prompt

import (
	"encoding/json"
	"strings"
)

// BusinessContext のデフォルト値
const (
	DefaultBusinessType  = "Small Business"
	DefaultBudget        = "₹0 – ₹2,000"
	DefaultGoal          = "Increase Sales"
	DefaultTimeAvailable = "1-2 hours per day"
	DefaultTeamSize      = "Solo"
)

// BusinessContext はクライアントから送られる事業情報。
type BusinessContext struct {
	BusinessType  string `json:"businessType"`
	Budget        string `json:"budget"`
	Goal          string `json:"goal"`
	TimeAvailable string `json:"timeAvailable"`
	TeamSize      string `json:"teamSize"`
}

// UnmarshalJSON はフロントエンドが送る短縮キー（time, team）も受け付ける。
func (bc *BusinessContext) UnmarshalJSON(data []byte) error {
	var raw struct {
		BusinessType  string `json:"businessType"`
		Budget        string `json:"budget"`
		Goal          string `json:"goal"`
		TimeAvailable string `json:"timeAvailable"`
		TeamSize      string `json:"teamSize"`
		Time          string `json:"time"`
		Team          string `json:"team"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*bc = BusinessContext{
		BusinessType:  raw.BusinessType,
		Budget:        raw.Budget,
		Goal:          raw.Goal,
		TimeAvailable: firstNonEmpty(raw.TimeAvailable, raw.Time),
		TeamSize:      firstNonEmpty(raw.TeamSize, raw.Team),
	}
	return nil
}

// WithDefaults は空のフィールドをデフォルト値で埋めたコピーを返す。
func (bc BusinessContext) WithDefaults() BusinessContext {
	return BusinessContext{
		BusinessType:  firstNonEmpty(bc.BusinessType, DefaultBusinessType),
		Budget:        firstNonEmpty(bc.Budget, DefaultBudget),
		Goal:          firstNonEmpty(bc.Goal, DefaultGoal),
		TimeAvailable: firstNonEmpty(bc.TimeAvailable, DefaultTimeAvailable),
		TeamSize:      firstNonEmpty(bc.TeamSize, DefaultTeamSize),
	}
}

// Mode はテンプレート選択に使う意図モード。
type Mode string

const (
	ModeGeneral    Mode = "GENERAL"
	ModeContent    Mode = "CONTENT"
	ModeStrict     Mode = "STRICT"
	ModeMarketing  Mode = "MARKETING"
	ModeEngagement Mode = "ENGAGEMENT"
)

// ParseMode は文字列をModeに変換する。空または未知の値はGENERALになる。
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeContent, ModeStrict, ModeMarketing, ModeEngagement:
		return m
	default:
		return ModeGeneral
	}
}

// TaskMode はフロントエンドが判定したタスク種別と補足指示。
type TaskMode struct {
	Mode       string `json:"mode"`
	Objective  string `json:"objective"`
	Guidelines string `json:"guidelines"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
