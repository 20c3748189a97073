package tests

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/schedule"
	testutil "github.com/urfu-lab/studyhub/tests"
)

func TestScheduleAPI(t *testing.T) {
	f := setup(t)
	ivanov := testutil.CreateTeacher(t, f.catalogRepo, "Ivan Ivanov", "Mathematics")
	algebra := testutil.CreateSubject(t, f.catalogRepo, "Algebra", &ivanov)
	history := testutil.CreateSubject(t, f.catalogRepo, "History", nil)
	groupA := testutil.CreateGroup(t, f.catalogRepo, "ALG-1", algebra)
	groupB := testutil.CreateGroup(t, f.catalogRepo, "HIS-1", history)
	groupC := testutil.CreateGroup(t, f.catalogRepo, "HIS-2", history)
	alice := testutil.CreateStudent(t, f.studentRepo, "Alice Smith", "alice", "alice@example.com", "v3ryS3cure!", true, groupA, groupB)
	loner := testutil.CreateStudent(t, f.studentRepo, "Bob Brown", "bob", "", "v3ryS3cure!", true)

	tuesday := testutil.CreateSchedule(t, f.scheduleRepo, schedule.Schedule{
		Subject: algebra, Group: groupA, Teacher: &ivanov, Weekday: 2,
		StartsAt: core.ClockFrom(10, 0, 0), EndsAt: core.ClockFrom(11, 30, 0),
		Room: null.StringFrom("101"), Topic: null.StringFrom("Quadratic equations"),
		GroupRelatedTopics: null.JSONFrom([]byte(`["Discriminant","Vieta"]`)),
		MaxScore:           10, IsControlWork: true,
	})
	mondayLate := testutil.CreateSchedule(t, f.scheduleRepo, schedule.Schedule{
		Subject: history, Group: groupB, Weekday: 1,
		StartsAt: core.ClockFrom(14, 0, 0), EndsAt: core.ClockFrom(15, 30, 0),
	})
	mondayEarly := testutil.CreateSchedule(t, f.scheduleRepo, schedule.Schedule{
		Subject: algebra, Group: groupA, Teacher: &ivanov, Weekday: 1,
		StartsAt: core.ClockFrom(8, 30, 0), EndsAt: core.ClockFrom(10, 0, 0),
	})
	other := testutil.CreateSchedule(t, f.scheduleRepo, schedule.Schedule{
		Subject: history, Group: groupC, Weekday: 1,
		StartsAt: core.ClockFrom(9, 0, 0), EndsAt: core.ClockFrom(10, 30, 0),
	})

	token := f.getToken(t, alice)

	tests := []httpTest{
		{name: "no token", path: "/api/schedule/schedule", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "all", path: "/api/schedule/schedule/", token: token, wantCode: http.StatusOK, wantData: marchallList(t, mondayEarly, other, mondayLate, tuesday)},
		{name: "by group", path: "/api/schedule/schedule?group=" + groupA.ID.String(), token: token, wantCode: http.StatusOK, wantData: marchallList(t, mondayEarly, tuesday)},
		{name: "by weekday", path: "/api/schedule/schedule?weekday=2", token: token, wantCode: http.StatusOK, wantData: marchallList(t, tuesday)},
		{name: "by group and weekday", path: "/api/schedule/schedule?weekday=1&group=" + groupC.ID.String(), token: token, wantCode: http.StatusOK, wantData: marchallList(t, other)},
		{name: "no match", path: "/api/schedule/schedule?weekday=7", token: token, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{
			name:     "invalid weekday",
			path:     "/api/schedule/schedule?weekday=8",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"weekday": "weekday must be between 1 (Monday) and 7 (Sunday)"}`),
		},
		{
			name:     "invalid group",
			path:     "/api/schedule/schedule?group=abc",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"group": "invalid group id"}`),
		},
		{name: "detail", path: "/api/schedule/schedule/" + tuesday.ID.String(), token: token, wantCode: http.StatusOK, wantData: marchallObj(t, tuesday)},
		{name: "detail unknown", path: "/api/schedule/schedule/" + uuid.New().String(), token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "my schedule", path: "/api/schedule/my-schedule/", token: token, wantCode: http.StatusOK, wantData: marchallList(t, mondayEarly, mondayLate, tuesday)},
		{name: "my schedule without groups", path: "/api/schedule/my-schedule", token: f.getToken(t, loner), wantCode: http.StatusOK, wantData: []byte(`[]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}
}
