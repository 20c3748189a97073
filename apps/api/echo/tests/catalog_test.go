package tests

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	testutil "github.com/urfu-lab/studyhub/tests"
)

func TestCatalogAPI(t *testing.T) {
	f := setup(t)
	ivanov := testutil.CreateTeacher(t, f.catalogRepo, "Ivan Ivanov", "Mathematics")
	petrova := testutil.CreateTeacher(t, f.catalogRepo, "Anna Petrova", "")
	algebra := testutil.CreateSubject(t, f.catalogRepo, "Algebra", &ivanov)
	history := testutil.CreateSubject(t, f.catalogRepo, "History", nil)
	groupA := testutil.CreateGroup(t, f.catalogRepo, "ALG-1", algebra)
	groupB := testutil.CreateGroup(t, f.catalogRepo, "HIS-1", history)
	alice := testutil.CreateStudent(t, f.studentRepo, "Alice Smith", "alice", "alice@example.com", "v3ryS3cure!", true, groupA, groupB)
	bob := testutil.CreateStudent(t, f.studentRepo, "Bob Brown", "bob", "", "v3ryS3cure!", true)

	token := f.getToken(t, alice)
	unknown := uuid.New().String()

	tests := []httpTest{
		{name: "teachers no token", path: "/api/core/teachers", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "teachers", path: "/api/core/teachers/", token: token, wantCode: http.StatusOK, wantData: marchallList(t, ivanov, petrova)},
		{name: "teachers ordered", path: "/api/core/teachers?ordering=-full_name,unknown", token: token, wantCode: http.StatusOK, wantData: marchallList(t, ivanov, petrova)},
		{name: "teacher", path: "/api/core/teachers/" + ivanov.ID.String(), token: token, wantCode: http.StatusOK, wantData: marchallObj(t, ivanov)},
		{name: "teacher unknown", path: "/api/core/teachers/" + unknown, token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "teacher malformed id", path: "/api/core/teachers/42", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},

		{name: "subjects", path: "/api/core/subjects", token: token, wantCode: http.StatusOK, wantData: marchallList(t, algebra, history)},
		{name: "subject", path: "/api/core/subjects/" + algebra.ID.String() + "/", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, algebra)},
		{name: "subject unknown", path: "/api/core/subjects/" + unknown, token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},

		{name: "groups", path: "/api/core/groups", token: token, wantCode: http.StatusOK, wantData: marchallList(t, groupA, groupB)},
		{name: "group", path: "/api/core/groups/" + groupB.ID.String(), token: token, wantCode: http.StatusOK, wantData: marchallObj(t, groupB)},
		{name: "group unknown", path: "/api/core/groups/" + unknown, token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},

		{name: "students", path: "/api/core/students", token: token, wantCode: http.StatusOK, wantData: marchallList(t, alice, bob)},
		{name: "student", path: "/api/core/students/" + alice.ID.String(), token: token, wantCode: http.StatusOK, wantData: marchallObj(t, alice)},
		{name: "student unknown", path: "/api/core/students/" + unknown, token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}
}
