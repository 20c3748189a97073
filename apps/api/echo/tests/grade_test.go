package tests

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/grade"
	testutil "github.com/urfu-lab/studyhub/tests"
)

func TestGradeAPI(t *testing.T) {
	f := setup(t)
	ivanov := testutil.CreateTeacher(t, f.catalogRepo, "Ivan Ivanov", "Mathematics")
	algebra := testutil.CreateSubject(t, f.catalogRepo, "Algebra", &ivanov)
	history := testutil.CreateSubject(t, f.catalogRepo, "History", nil)
	alice := testutil.CreateStudent(t, f.studentRepo, "Alice Smith", "alice", "alice@example.com", "v3ryS3cure!", true)
	bob := testutil.CreateStudent(t, f.studentRepo, "Bob Brown", "bob", "", "v3ryS3cure!", true)

	g1 := testutil.CreateGrade(t, f.gradeRepo, grade.Grade{
		StudentID: alice.ID, Subject: algebra, Teacher: &ivanov, WorkType: grade.WorkTest,
		Topic: "Quadratic equations", Value: 4, WorkDate: date(t, "2024-02-01"),
	})
	g2 := testutil.CreateGrade(t, f.gradeRepo, grade.Grade{
		StudentID: alice.ID, Subject: algebra, Teacher: &ivanov, WorkType: grade.WorkHomework,
		Topic: "Linear functions", Value: 5, WorkDate: date(t, "2024-02-08"),
	})
	g3 := testutil.CreateGrade(t, f.gradeRepo, grade.Grade{
		StudentID: alice.ID, Subject: history, WorkType: grade.WorkExam, Topic: "Middle ages", Value: 3,
		Description: null.StringFrom("oral exam"),
	})
	g4 := testutil.CreateGrade(t, f.gradeRepo, grade.Grade{StudentID: bob.ID, Subject: history, Topic: "Antiquity", Value: 2})

	aliceToken := f.getToken(t, alice)
	myGrades := []grade.SubjectGrades{
		{Subject: algebra, Grades: []grade.Grade{g1, g2}, AverageScore: 4.5, TotalGrades: 2},
		{Subject: history, Grades: []grade.Grade{g3}, AverageScore: 3, TotalGrades: 1},
	}

	tests := []httpTest{
		{name: "grades no token", path: "/api/grades/grades", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "grades", path: "/api/grades/grades/", token: aliceToken, wantCode: http.StatusOK, wantData: marchallList(t, g1, g2, g3, g4)},
		{name: "grade", path: "/api/grades/grades/" + g1.ID.String(), token: aliceToken, wantCode: http.StatusOK, wantData: marchallObj(t, g1)},
		{name: "grade unknown", path: "/api/grades/grades/" + uuid.New().String(), token: aliceToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "grade malformed id", path: "/api/grades/grades/abc", token: aliceToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "my grades", path: "/api/grades/my-grades/", token: aliceToken, wantCode: http.StatusOK, wantData: marchallObj(t, myGrades)},
		{name: "my grades none", path: "/api/grades/my-grades", token: f.getToken(t, testutil.CreateStudent(t, f.studentRepo, "Carol White", "carol", "", "v3ryS3cure!", true)), wantCode: http.StatusOK, wantData: []byte(`[]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}
}

func date(t *testing.T, s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("date() failed: %v", err)
	}
	return d
}
