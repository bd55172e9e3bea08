package automation

import (
	"errors"
	"testing"
	"time"
)

func validAutomation() *Automation {
	return &Automation{
		ID:      "auto-001",
		Name:    "Fan follows light",
		Enabled: true,
		Trigger: Trigger{Type: TriggerStateChanged, EntityID: "light.kitchen", To: "on"},
		Actions: []Action{
			{Type: ActionCallService, EntityID: "switch.fan", Service: "turn_on"},
		},
	}
}

func TestAutomation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Automation)
		wantErr error
	}{
		{
			name:   "valid state trigger",
			mutate: func(*Automation) {},
		},
		{
			name: "valid time pattern",
			mutate: func(a *Automation) {
				a.Trigger = Trigger{Type: TriggerTimePattern, Schedule: "*/5 * * * *"}
			},
		},
		{
			name: "valid manual trigger",
			mutate: func(a *Automation) {
				a.Trigger = Trigger{Type: TriggerManual}
			},
		},
		{
			name: "valid conditions",
			mutate: func(a *Automation) {
				a.Conditions = []Condition{
					{Type: ConditionStateIs, EntityID: "switch.fan", State: "off"},
					{Type: ConditionTimeRange, After: "22:00", Before: "06:00"},
				}
			},
		},
		{
			name:    "missing id",
			mutate:  func(a *Automation) { a.ID = "" },
			wantErr: ErrInvalidAutomation,
		},
		{
			name:    "missing name",
			mutate:  func(a *Automation) { a.Name = "" },
			wantErr: ErrInvalidAutomation,
		},
		{
			name: "state trigger without entity",
			mutate: func(a *Automation) {
				a.Trigger = Trigger{Type: TriggerStateChanged}
			},
			wantErr: ErrInvalidTrigger,
		},
		{
			name: "state trigger with bad to state",
			mutate: func(a *Automation) {
				a.Trigger.To = "blinking"
			},
			wantErr: ErrInvalidTrigger,
		},
		{
			name: "time pattern with bad schedule",
			mutate: func(a *Automation) {
				a.Trigger = Trigger{Type: TriggerTimePattern, Schedule: "not cron"}
			},
			wantErr: ErrInvalidTrigger,
		},
		{
			name: "unknown trigger type",
			mutate: func(a *Automation) {
				a.Trigger = Trigger{Type: "webhook"}
			},
			wantErr: ErrInvalidTrigger,
		},
		{
			name: "condition with bad state",
			mutate: func(a *Automation) {
				a.Conditions = []Condition{{Type: ConditionStateIs, EntityID: "x.y", State: "warm"}}
			},
			wantErr: ErrInvalidCondition,
		},
		{
			name: "time range with bad clock",
			mutate: func(a *Automation) {
				a.Conditions = []Condition{{Type: ConditionTimeRange, After: "25:00", Before: "06:00"}}
			},
			wantErr: ErrInvalidCondition,
		},
		{
			name:    "no actions",
			mutate:  func(a *Automation) { a.Actions = nil },
			wantErr: ErrInvalidAutomation,
		},
		{
			name: "call_service without service",
			mutate: func(a *Automation) {
				a.Actions = []Action{{Type: ActionCallService, EntityID: "switch.fan"}}
			},
			wantErr: ErrInvalidAction,
		},
		{
			name: "delay without duration",
			mutate: func(a *Automation) {
				a.Actions = []Action{{Type: ActionDelay}}
			},
			wantErr: ErrInvalidAction,
		},
		{
			name: "delay too long",
			mutate: func(a *Automation) {
				a.Actions = []Action{{Type: ActionDelay, DurationMS: int((2 * time.Hour).Milliseconds())}}
			},
			wantErr: ErrInvalidAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAutomation()
			tt.mutate(a)
			err := a.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInTimeRange(t *testing.T) {
	at := func(hhmm string) time.Time {
		parsed, err := time.Parse("15:04", hhmm)
		if err != nil {
			t.Fatalf("bad test clock %q", hhmm)
		}
		return time.Date(2026, 8, 24, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	}

	tests := []struct {
		name          string
		now           string
		after, before string
		want          bool
	}{
		{"inside daytime window", "12:00", "09:00", "17:00", true},
		{"before daytime window", "08:59", "09:00", "17:00", false},
		{"at window start", "09:00", "09:00", "17:00", true},
		{"at window end", "17:00", "09:00", "17:00", false},
		{"overnight window late evening", "23:30", "22:00", "06:00", true},
		{"overnight window early morning", "05:00", "22:00", "06:00", true},
		{"outside overnight window", "12:00", "22:00", "06:00", false},
		{"equal endpoints cover whole day", "03:17", "08:00", "08:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := inTimeRange(at(tt.now), tt.after, tt.before)
			if err != nil {
				t.Fatalf("inTimeRange() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("inTimeRange(%s in %s-%s) = %v, want %v", tt.now, tt.after, tt.before, got, tt.want)
			}
		})
	}
}
