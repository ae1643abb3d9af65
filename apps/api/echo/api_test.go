package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/maabara/apps/api/echo"
	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/activity"
	"github.com/trezcool/maabara/core/equipment"
	"github.com/trezcool/maabara/core/lab"
	"github.com/trezcool/maabara/core/school"
	"github.com/trezcool/maabara/core/scope"
	"github.com/trezcool/maabara/core/session"
	"github.com/trezcool/maabara/core/student"
	"github.com/trezcool/maabara/core/user"
	emailsvc "github.com/trezcool/maabara/services/email"
	logsvc "github.com/trezcool/maabara/services/logger"
	reportsvc "github.com/trezcool/maabara/services/report"
	inmemdb "github.com/trezcool/maabara/storage/database/inmem"
)

var (
	errMissingToken     = httpErr{Error: "missing or malformed jwt"}
	errPermissionDenied = httpErr{Error: "permission denied"}
	errNotFound         = httpErr{Error: "not found"}
)

func TestMain(m *testing.M) {
	core.Conf.Debug = false
	core.Conf.TestMode = true
	os.Exit(m.Run())
}

type fixture struct {
	app Server

	userRepo user.Repository
	actRepo  activity.Repository

	admin    user.User // unrestricted
	labAdmin user.User // admin pinned to labTG
	mentor   user.User // Telangana
	officer  user.User // Kano

	schTG       school.School
	schKano     school.School
	schInactive school.School
	labTG       lab.Lab
	labKano     lab.Lab
	labType     lab.LabType
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := inmemdb.Open()

	fix := &fixture{
		userRepo: inmemdb.NewUserRepository(db),
		actRepo:  inmemdb.NewActivityRepository(db),
	}
	schRepo := inmemdb.NewSchoolRepository(db)
	labRepo := inmemdb.NewLabRepository(db)
	eqRepo := inmemdb.NewEquipmentRepository(db)
	sessRepo := inmemdb.NewSessionRepository(db)
	stRepo := inmemdb.NewStudentRepository(db)

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), core.Conf)
	logger.Enable(false)
	mailSvc := emailsvc.NewConsoleServiceMock()

	usrSvc := user.NewService(fix.userRepo, mailSvc)
	schSvc := school.NewService(schRepo)
	labSvc := lab.NewService(labRepo)
	eqSvc := equipment.NewService(eqRepo)
	sessSvc := session.NewService(sessRepo)
	stSvc := student.NewService(stRepo)
	actSvc := activity.NewSyncService(fix.actRepo, logger)
	repSvc := reportsvc.NewService(schSvc, labSvc, eqSvc, sessSvc, stSvc)

	fix.admin = createUser(t, fix.userRepo, "Admin", "admin", "admin@test.in", scope.RoleAdmin, "", 0)
	fix.mentor = createUser(t, fix.userRepo, "Mentor", "mentor", "mentor@test.in", scope.RoleMentor, "Telangana", 0)
	fix.officer = createUser(t, fix.userRepo, "Officer", "officer", "officer@test.in", scope.RoleStateOfficer, "Kano", 0)

	fix.schTG = createSchool(t, schRepo, "TG High", "11111111111", "Telangana", fix.mentor.ID, true)
	fix.schKano = createSchool(t, schRepo, "Kano Central", "22222222222", "Kano", fix.admin.ID, true)
	fix.schInactive = createSchool(t, schRepo, "TG Closed", "33333333333", "Telangana", fix.admin.ID, false)

	var err error
	fix.labType, err = labRepo.CreateLabType(ctx, lab.LabType{Name: "Tinkering", IsActive: true})
	if err != nil {
		t.Fatalf("CreateLabType() failed: %v", err)
	}
	fix.labTG = createLab(t, labRepo, "TG Lab", fix.schTG.ID, fix.labType.ID, fix.mentor.ID)
	fix.labKano = createLab(t, labRepo, "Kano Lab", fix.schKano.ID, fix.labType.ID, fix.admin.ID)

	fix.labAdmin = createUser(t, fix.userRepo, "Lab Admin", "labadmin", "labadmin@test.in", scope.RoleAdmin, "", fix.labTG.ID)

	fix.app = NewServer(&Options{
		Logger:       logger,
		UserSvc:      usrSvc,
		SchoolSvc:    schSvc,
		LabSvc:       labSvc,
		EquipmentSvc: eqSvc,
		SessionSvc:   sessSvc,
		StudentSvc:   stSvc,
		ActivitySvc:  actSvc,
		ReportSvc:    repSvc,
	})
	return fix
}

func createUser(t *testing.T, repo user.Repository, name, uname, email string, role scope.Role, state string, labID int) user.User {
	t.Helper()
	usr := user.User{
		Name:          name,
		Username:      uname,
		Email:         email,
		Role:          role,
		State:         state,
		AssignedLabID: labID,
		IsActive:      true,
	}
	if err := usr.SetPassword("LeSecret!"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func createSchool(t *testing.T, repo school.Repository, name, udise, state string, createdBy int, active bool) school.School {
	t.Helper()
	sch, err := repo.CreateSchool(context.Background(), school.School{
		Name:      name,
		UDISE:     udise,
		State:     state,
		CreatedBy: createdBy,
		IsActive:  active,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return sch
}

func createLab(t *testing.T, repo lab.Repository, name string, schoolID, typeID, createdBy int) lab.Lab {
	t.Helper()
	l, err := repo.CreateLab(context.Background(), lab.Lab{
		Name:      name,
		SchoolID:  schoolID,
		LabTypeID: typeID,
		CreatedBy: createdBy,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("CreateLab() failed: %v", err)
	}
	return l
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (tt httpTest) run(t *testing.T, app Server) {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	code := tt.wantCode
	if code == 0 {
		code = http.StatusOK
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	if rec.Code != code {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, code, rec.Body.String())
	}
	if tt.wantData != nil {
		ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
		if err != nil {
			t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
		}
		if !ok {
			t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
		}
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	if objs == nil {
		objs = make([]interface{}, 0) // empty lists render as [], not null
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	t.Helper()
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	l1, ok1 := j1.([]interface{})
	l2, ok2 := j2.([]interface{})
	if ok1 && ok2 {
		return assert.ElementsMatch(t, l1, l2), nil
	}
	return false, nil
}

func Test_userApi_login(t *testing.T) {
	fix := setup(t)

	body := marchallObj(t, map[string]string{"username": "mentor", "password": "LeSecret!"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/users/login", "", body)
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling LoginResponse: %v", err)
	}
	if resp.Token == "" {
		t.Error("login returned an empty token")
	}

	// the token must grant access to scoped lists
	req, rec = newAuthRequest(http.MethodGet, "/v1/schools", resp.Token)
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("schools with fresh token: code = %v", rec.Code)
	}

	tests := []httpTest{
		{
			name: "bad password", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{"username": "mentor", "password": "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{"username": "ghost", "password": "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, fix.app) })
	}
}

func Test_userApi_accountDeactivated(t *testing.T) {
	fix := setup(t)
	naughty := createUser(t, fix.userRepo, "N Dog", "ndog01", "ndog@test.in", scope.RoleMentor, "Kano", 0)
	naughty.IsActive = false
	if _, err := fix.userRepo.UpdateUser(context.Background(), naughty); err != nil {
		t.Fatalf("UpdateUser() failed: %v", err)
	}

	tt := httpTest{
		name: "deactivated", method: http.MethodPost, path: "/v1/users/login",
		body:     marchallObj(t, map[string]string{"username": "ndog01", "password": "LeSecret!"}),
		wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
	}
	tt.run(t, fix.app)
}

func Test_schoolApi_query(t *testing.T) {
	fix := setup(t)

	tests := []httpTest{
		{name: "auth required", path: "/v1/schools", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin sees every school", path: "/v1/schools", token: getToken(t, fix.admin),
			wantData: marchallList(t, fix.schTG, fix.schKano, fix.schInactive),
		},
		{
			name: "mentor narrowed to their state", path: "/v1/schools", token: getToken(t, fix.mentor),
			wantData: marchallList(t, fix.schTG, fix.schInactive),
		},
		{
			name: "officer narrowed to their state", path: "/v1/schools", token: getToken(t, fix.officer),
			wantData: marchallList(t, fix.schKano),
		},
		{
			name: "admin with a lab narrowed to its school", path: "/v1/schools", token: getToken(t, fix.labAdmin),
			wantData: marchallList(t, fix.schTG),
		},
		{
			name: "active excludes disabled schools", path: "/v1/schools/active", token: getToken(t, fix.mentor),
			wantData: marchallList(t, fix.schTG),
		},
		{
			name: "active for plain admin", path: "/v1/schools/active", token: getToken(t, fix.admin),
			wantData: marchallList(t, fix.schTG, fix.schKano),
		},
		{
			name: "mine lists rows created by the caller", path: "/v1/schools/mine", token: getToken(t, fix.mentor),
			wantData: marchallList(t, fix.schTG),
		},
		{
			name: "mine for admin", path: "/v1/schools/mine", token: getToken(t, fix.admin),
			wantData: marchallList(t, fix.schKano, fix.schInactive),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, fix.app) })
	}
}

func Test_schoolApi_create(t *testing.T) {
	fix := setup(t)

	body := marchallObj(t, map[string]string{"name": "New School", "udise": "44444444444", "state": "Telangana"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/schools", getToken(t, fix.mentor), body)
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var sch school.School
	if err := json.Unmarshal(rec.Body.Bytes(), &sch); err != nil {
		t.Fatalf("unmarshalling School: %v", err)
	}
	if sch.CreatedBy != fix.mentor.ID {
		t.Errorf("CreatedBy = %d; want the caller %d", sch.CreatedBy, fix.mentor.ID)
	}
	if !sch.IsActive {
		t.Error("a registered school must start active")
	}

	tests := []httpTest{
		{
			name: "duplicate UDISE rejected", method: http.MethodPost, path: "/v1/schools",
			body: body, token: getToken(t, fix.admin), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"udise": school.ErrUDISEExists.Error()}),
		},
		{
			name: "UDISE must be 11 digits", method: http.MethodPost, path: "/v1/schools",
			body:     marchallObj(t, map[string]string{"name": "Bad", "udise": "123", "state": "Kano"}),
			token:    getToken(t, fix.admin),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, fix.app) })
	}
}

func Test_schoolApi_updateScopedToCaller(t *testing.T) {
	fix := setup(t)
	mentorToken := getToken(t, fix.mentor)

	tests := []httpTest{
		{
			name: "school outside the caller's state reads as missing", method: http.MethodPut,
			path:  "/v1/schools/" + strconv.Itoa(fix.schKano.ID),
			body:  marchallObj(t, map[string]string{"name": "Hijacked"}),
			token: mentorToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "target row left untouched", path: "/v1/schools", token: getToken(t, fix.officer),
			wantData: marchallList(t, fix.schKano),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, fix.app) })
	}

	// the same caller may still update schools within their state
	req, rec := newAuthRequest(http.MethodPut, "/v1/schools/"+strconv.Itoa(fix.schTG.ID), mentorToken,
		marchallObj(t, map[string]string{"name": "TG High Renamed"}))
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var sch school.School
	if err := json.Unmarshal(rec.Body.Bytes(), &sch); err != nil {
		t.Fatalf("unmarshalling School: %v", err)
	}
	if sch.Name != "TG High Renamed" {
		t.Errorf("Name = %q; want the rename applied", sch.Name)
	}
}

func Test_schoolApi_adminOnly(t *testing.T) {
	fix := setup(t)
	mentorToken := getToken(t, fix.mentor)
	adminToken := getToken(t, fix.admin)
	id := strconv.Itoa(fix.schTG.ID)

	tests := []httpTest{
		{
			name: "status toggle denied to mentor", method: http.MethodPatch, path: "/v1/schools/" + id + "/status",
			token: mentorToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name: "delete denied to mentor", method: http.MethodDelete, path: "/v1/schools/" + id,
			token: mentorToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name: "admin toggles status", method: http.MethodPatch, path: "/v1/schools/" + id + "/status",
			token: adminToken, wantData: marchallObj(t, StatusResponse{ID: fix.schTG.ID, IsActive: false}),
		},
		{
			name: "toggle flips back", method: http.MethodPatch, path: "/v1/schools/" + id + "/status",
			token: adminToken, wantData: marchallObj(t, StatusResponse{ID: fix.schTG.ID, IsActive: true}),
		},
		{
			name: "toggle unknown school", method: http.MethodPatch, path: "/v1/schools/99999/status",
			token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "admin deletes school", method: http.MethodDelete, path: "/v1/schools/" + id,
			token: adminToken, wantCode: http.StatusNoContent,
		},
		{
			name: "labs of the deleted school are gone", path: "/v1/labs", token: adminToken,
			wantData: marchallList(t, fix.labKano),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, fix.app) })
	}
}

func Test_labApi_query(t *testing.T) {
	fix := setup(t)

	tests := []httpTest{
		{name: "auth required", path: "/v1/labs", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin sees every lab", path: "/v1/labs", token: getToken(t, fix.admin),
			wantData: marchallList(t, fix.labTG, fix.labKano),
		},
		{
			name: "assigned lab wins for admins", path: "/v1/labs", token: getToken(t, fix.labAdmin),
			wantData: marchallList(t, fix.labTG),
		},
		{
			name: "mentor narrowed to their state", path: "/v1/labs", token: getToken(t, fix.mentor),
			wantData: marchallList(t, fix.labTG),
		},
		{
			name: "officer narrowed to their state", path: "/v1/labs", token: getToken(t, fix.officer),
			wantData: marchallList(t, fix.labKano),
		},
		{
			name: "mine lists rows created by the caller", path: "/v1/labs/mine", token: getToken(t, fix.mentor),
			wantData: marchallList(t, fix.labTG),
		},
		{
			name: "lab types visible to all roles", path: "/v1/lab-types", token: getToken(t, fix.mentor),
			wantData: marchallList(t, fix.labType),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, fix.app) })
	}
}

func Test_equipmentApi(t *testing.T) {
	fix := setup(t)
	mentorToken := getToken(t, fix.mentor)
	adminToken := getToken(t, fix.admin)

	// mentor adds stock
	body := marchallObj(t, map[string]interface{}{"name": "Microscope", "quantity": 10})
	req, rec := newAuthRequest(http.MethodPost, "/v1/equipment", mentorToken, body)
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var eq equipment.Equipment
	if err := json.Unmarshal(rec.Body.Bytes(), &eq); err != nil {
		t.Fatalf("unmarshalling Equipment: %v", err)
	}
	if eq.Available != 10 {
		t.Errorf("Available = %d; new stock must be fully available", eq.Available)
	}

	// admin adds stock too; mentor must not see it
	req, rec = newAuthRequest(http.MethodPost, "/v1/equipment", adminToken,
		marchallObj(t, map[string]interface{}{"name": "Telescope", "quantity": 2}))
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed! code = %v; body %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/equipment", mentorToken)
	fix.app.ServeHTTP(rec, req)
	var items []equipment.Equipment
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshalling equipment list: %v", err)
	}
	if len(items) != 1 || items[0].ID != eq.ID {
		t.Errorf("mentor sees %d items; want only their own", len(items))
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/equipment", adminToken)
	fix.app.ServeHTTP(rec, req)
	items = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshalling equipment list: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("admin sees %d items; want the whole catalog", len(items))
	}

	// allocate part of the stock to the Telangana lab
	alBody := marchallObj(t, map[string]interface{}{
		"equipment_id": eq.ID, "lab_id": fix.labTG.ID, "school_id": fix.schTG.ID, "quantity": 4,
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/allocations", mentorToken, alBody)
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("allocate failed! code = %v; body %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/equipment", mentorToken)
	fix.app.ServeHTTP(rec, req)
	items = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshalling equipment list: %v", err)
	}
	if items[0].Available != 6 {
		t.Errorf("Available = %d after allocating 4 of 10; want 6", items[0].Available)
	}

	// over-allocation fails atomically
	tt := httpTest{
		name: "insufficient stock", method: http.MethodPost, path: "/v1/allocations",
		body: marchallObj(t, map[string]interface{}{
			"equipment_id": eq.ID, "lab_id": fix.labTG.ID, "school_id": fix.schTG.ID, "quantity": 7,
		}),
		token: mentorToken, wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"quantity": equipment.ErrInsufficientStock.Error()}),
	}
	tt.run(t, fix.app)

	// stock unchanged after the failed allocation
	req, rec = newAuthRequest(http.MethodGet, "/v1/equipment", mentorToken)
	fix.app.ServeHTTP(rec, req)
	items = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshalling equipment list: %v", err)
	}
	if items[0].Available != 6 {
		t.Errorf("Available = %d after failed allocation; want 6", items[0].Available)
	}
}

func Test_allocationApi_scoping(t *testing.T) {
	fix := setup(t)

	// seed two allocations through the API as admin
	adminToken := getToken(t, fix.admin)
	req, rec := newAuthRequest(http.MethodPost, "/v1/equipment", adminToken,
		marchallObj(t, map[string]interface{}{"name": "Kits", "quantity": 10}))
	fix.app.ServeHTTP(rec, req)
	var eq equipment.Equipment
	if err := json.Unmarshal(rec.Body.Bytes(), &eq); err != nil {
		t.Fatalf("unmarshalling Equipment: %v", err)
	}

	for _, target := range []struct {
		labID, schoolID int
	}{
		{fix.labTG.ID, fix.schTG.ID},
		{fix.labKano.ID, fix.schKano.ID},
	} {
		req, rec = newAuthRequest(http.MethodPost, "/v1/allocations", adminToken, marchallObj(t, map[string]interface{}{
			"equipment_id": eq.ID, "lab_id": target.labID, "school_id": target.schoolID, "quantity": 2,
		}))
		fix.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("allocate failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
	}

	check := func(t *testing.T, token string, wantLabIDs ...int) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, "/v1/allocations", token)
		fix.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("list failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var allocs []equipment.Allocation
		if err := json.Unmarshal(rec.Body.Bytes(), &allocs); err != nil {
			t.Fatalf("unmarshalling allocations: %v", err)
		}
		gotLabIDs := make([]int, 0, len(allocs))
		for _, a := range allocs {
			gotLabIDs = append(gotLabIDs, a.LabID)
		}
		assert.ElementsMatch(t, wantLabIDs, gotLabIDs)
	}

	t.Run("admin sees all", func(t *testing.T) { check(t, adminToken, fix.labTG.ID, fix.labKano.ID) })
	t.Run("mentor sees their state", func(t *testing.T) { check(t, getToken(t, fix.mentor), fix.labTG.ID) })
	t.Run("officer sees their state", func(t *testing.T) { check(t, getToken(t, fix.officer), fix.labKano.ID) })
	t.Run("lab admin sees their lab", func(t *testing.T) { check(t, getToken(t, fix.labAdmin), fix.labTG.ID) })
}

func Test_sessionApi(t *testing.T) {
	fix := setup(t)
	mentorToken := getToken(t, fix.mentor)

	body := marchallObj(t, map[string]interface{}{
		"lab_id": fix.labTG.ID, "topic": "Robotics 101", "host": "Dr. Rao", "scheduled_on": "2026-09-15T10:00:00Z",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/sessions", mentorToken, body)
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var sess session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("unmarshalling Session: %v", err)
	}

	tests := []httpTest{
		{
			name: "officer of another state sees nothing", path: "/v1/sessions", token: getToken(t, fix.officer),
			wantData: marchallList(t),
		},
		{
			name: "mentor sees their session", path: "/v1/sessions", token: mentorToken,
			wantData: marchallList(t, sess),
		},
		{
			name: "delete denied to mentor", method: http.MethodDelete, path: "/v1/sessions/" + strconv.Itoa(sess.ID),
			token: mentorToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name: "session outside the caller's state reads as missing", method: http.MethodPut,
			path:  "/v1/sessions/" + strconv.Itoa(sess.ID),
			body:  marchallObj(t, map[string]interface{}{"topic": "Hijacked"}),
			token: getToken(t, fix.officer), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, fix.app) })
	}
}

func Test_studentApi(t *testing.T) {
	fix := setup(t)
	mentorToken := getToken(t, fix.mentor)

	body := marchallObj(t, map[string]interface{}{
		"school_id": fix.schTG.ID, "name": "Asha", "aadhar": "123412341234", "grade": "9",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/students", mentorToken, body)
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var st student.Student
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshalling Student: %v", err)
	}

	tests := []httpTest{
		{
			name: "duplicate aadhar rejected", method: http.MethodPost, path: "/v1/students",
			body: body, token: mentorToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"aadhar": student.ErrAadharExists.Error()}),
		},
		{
			name: "aadhar must be 12 digits", method: http.MethodPost, path: "/v1/students",
			body:     marchallObj(t, map[string]interface{}{"school_id": fix.schTG.ID, "name": "Bad", "aadhar": "42"}),
			token:    mentorToken, wantCode: http.StatusBadRequest,
		},
		{
			name: "officer of another state sees nothing", path: "/v1/students", token: getToken(t, fix.officer),
			wantData: marchallList(t),
		},
		{
			name: "mentor sees their state's students", path: "/v1/students", token: mentorToken,
			wantData: marchallList(t, st),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, fix.app) })
	}
}

func Test_reportApi(t *testing.T) {
	fix := setup(t)
	mentorToken := getToken(t, fix.mentor)

	req, rec := newAuthRequest(http.MethodGet, "/v1/reports/schools", mentorToken)
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("report failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q; want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "schools_report_") {
		t.Errorf("Content-Disposition = %q; want an attachment file name", cd)
	}
	// the mentor's report only carries their state's rows
	if body := rec.Body.String(); !strings.Contains(body, fix.schTG.Name) || strings.Contains(body, fix.schKano.Name) {
		t.Errorf("report rows not scoped to the caller's state:\n%s", body)
	}

	tests := []httpTest{
		{name: "auth required", path: "/v1/reports/schools", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "parameter required", path: "/v1/reports/state", token: mentorToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: reportsvc.ErrMissingParameter.Error()}),
		},
		{
			name: "bad date range", path: "/v1/reports/date-range?parameter=yesterday", token: mentorToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: reportsvc.ErrBadParameter.Error()}),
		},
		{
			name: "unknown type", path: "/v1/reports/lol", token: mentorToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, fix.app) })
	}
}

func Test_activityApi(t *testing.T) {
	fix := setup(t)
	mentorToken := getToken(t, fix.mentor)
	adminToken := getToken(t, fix.admin)

	// a mutation through the API must leave an audit row
	req, rec := newAuthRequest(http.MethodPost, "/v1/schools", mentorToken,
		marchallObj(t, map[string]string{"name": "Audited", "udise": "55555555555", "state": "Telangana"}))
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed! code = %v; body %s", rec.Code, rec.Body.String())
	}

	t.Run("admin required", func(t *testing.T) {
		tt := httpTest{
			path: "/v1/activities", token: mentorToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied),
		}
		tt.run(t, fix.app)
	})

	t.Run("mutations are recorded", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/activities", adminToken)
		fix.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("list failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var acts []activity.Activity
		if err := json.Unmarshal(rec.Body.Bytes(), &acts); err != nil {
			t.Fatalf("unmarshalling activities: %v", err)
		}
		if len(acts) != 1 {
			t.Fatalf("got %d activities; want 1", len(acts))
		}
		if acts[0].UserID != fix.mentor.ID {
			t.Errorf("UserID = %d; want the acting mentor %d", acts[0].UserID, fix.mentor.ID)
		}
		if !strings.Contains(acts[0].Message, "registered school") {
			t.Errorf("Message = %q; want the school registration entry", acts[0].Message)
		}
	})

	t.Run("filter by user", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/activities?user_id="+strconv.Itoa(fix.admin.ID), adminToken)
		fix.app.ServeHTTP(rec, req)
		var acts []activity.Activity
		if err := json.Unmarshal(rec.Body.Bytes(), &acts); err != nil {
			t.Fatalf("unmarshalling activities: %v", err)
		}
		if len(acts) != 0 {
			t.Errorf("got %d activities for the admin; want 0", len(acts))
		}
	})
}

func Test_tokenRefresh(t *testing.T) {
	fix := setup(t)
	token := getToken(t, fix.mentor)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
	fix.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling LoginResponse: %v", err)
	}
	if resp.Token == "" {
		t.Error("refresh returned an empty token")
	}
}
