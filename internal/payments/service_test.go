package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/carelink/clinic-api/internal/esewa"
	"github.com/carelink/clinic-api/internal/models"
)

const testSecret = "8gBm/:&EnhH.1/q"

// fakeStore keeps appointments in memory; ConfirmPayment is guarded by a
// mutex to exercise concurrent duplicate callbacks.
type fakeStore struct {
	mu    sync.Mutex
	byTxn map[string]*models.Appointment
	byID  map[primitive.ObjectID]*models.Appointment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byTxn: make(map[string]*models.Appointment),
		byID:  make(map[primitive.ObjectID]*models.Appointment),
	}
}

func (f *fakeStore) add(apt *models.Appointment) {
	f.byID[apt.ID] = apt
	if apt.PaymentResult.TransactionID != "" {
		f.byTxn[apt.PaymentResult.TransactionID] = apt
	}
}

func (f *fakeStore) FindForPatient(_ context.Context, appointmentID, patientID primitive.ObjectID) (*models.Appointment, error) {
	apt, ok := f.byID[appointmentID]
	if !ok || apt.PatientID != patientID {
		return nil, ErrAppointmentNotFound
	}
	return apt, nil
}

func (f *fakeStore) AttachTransaction(_ context.Context, appointmentID primitive.ObjectID, result models.PaymentResult) error {
	apt, ok := f.byID[appointmentID]
	if !ok {
		return ErrAppointmentNotFound
	}
	apt.PaymentResult = result
	f.byTxn[result.TransactionID] = apt
	return nil
}

func (f *fakeStore) ConfirmPayment(_ context.Context, transactionID string) (*models.Appointment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt, ok := f.byTxn[transactionID]
	if !ok {
		return nil, false, ErrTransactionNotFound
	}
	if apt.PaymentStatus == models.PaymentPaid {
		return apt, false, nil
	}
	now := time.Now().UTC()
	apt.PaymentStatus = models.PaymentPaid
	apt.Status = models.StatusBooked
	apt.PaymentResult.Status = "completed"
	apt.PaymentResult.PaidAt = &now
	return apt, true, nil
}

func (f *fakeStore) ResetPayment(_ context.Context, transactionID string) error {
	apt, ok := f.byTxn[transactionID]
	if !ok {
		return ErrTransactionNotFound
	}
	apt.PaymentStatus = models.PaymentUnpaid
	apt.Status = models.StatusPendingPayment
	return nil
}

type countingNotifier struct {
	mu   sync.Mutex
	sent int
}

func (n *countingNotifier) SendPaymentConfirmation(*models.Appointment) {
	n.mu.Lock()
	n.sent++
	n.mu.Unlock()
}

func pendingAppointment(txn string) *models.Appointment {
	return &models.Appointment{
		ID:              primitive.NewObjectID(),
		PatientID:       primitive.NewObjectID(),
		Status:          models.StatusPendingPayment,
		PaymentStatus:   models.PaymentUnpaid,
		ConsultationFee: 500,
		PaymentResult:   models.PaymentResult{TransactionID: txn, Status: "pending", Amount: 500},
	}
}

func newTestService(store Store, notifier Notifier) *Service {
	gateway := esewa.NewClient(testSecret, "EPAYTEST", "")
	return NewService(store, gateway, notifier, zerolog.Nop())
}

// signCallback produces a callback field set signed with the test secret.
func signCallback(t *testing.T, fields map[string]string) map[string]string {
	t.Helper()
	gateway := esewa.NewClient(testSecret, "EPAYTEST", "")
	names := strings.Split(fields["signed_field_names"], ",")
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+"="+fields[n])
	}
	fields["signature"] = signPayload(testSecret, strings.Join(parts, ","))
	if err := gateway.VerifyCallback(fields); err != nil {
		t.Fatalf("test callback does not verify: %v", err)
	}
	return fields
}

func signPayload(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestConfirmSuccessMarksPaidAndNotifiesOnce(t *testing.T) {
	store := newFakeStore()
	apt := pendingAppointment("CLK-txn-1")
	store.add(apt)
	notifier := &countingNotifier{}
	svc := newTestService(store, notifier)

	fields := signCallback(t, map[string]string{
		"status":             "COMPLETE",
		"transaction_uuid":   "CLK-txn-1",
		"total_amount":       "500.00",
		"signed_field_names": "status,transaction_uuid,total_amount",
	})

	got, err := svc.ConfirmSuccess(context.Background(), fields)
	if err != nil {
		t.Fatalf("ConfirmSuccess: %v", err)
	}
	if got.Status != models.StatusBooked || got.PaymentStatus != models.PaymentPaid {
		t.Errorf("appointment = %s/%s, want booked/paid", got.Status, got.PaymentStatus)
	}
	if got.PaymentResult.Status != "completed" || got.PaymentResult.PaidAt == nil {
		t.Errorf("payment result not stamped: %+v", got.PaymentResult)
	}
	if notifier.sent != 1 {
		t.Errorf("notifier.sent = %d, want 1", notifier.sent)
	}
}

func TestConfirmSuccessTamperedSignatureLeavesStateUntouched(t *testing.T) {
	store := newFakeStore()
	apt := pendingAppointment("CLK-txn-2")
	store.add(apt)
	notifier := &countingNotifier{}
	svc := newTestService(store, notifier)

	fields := signCallback(t, map[string]string{
		"status":             "COMPLETE",
		"transaction_uuid":   "CLK-txn-2",
		"total_amount":       "500.00",
		"signed_field_names": "status,transaction_uuid,total_amount",
	})
	fields["total_amount"] = "1.00" // tamper after signing

	if _, err := svc.ConfirmSuccess(context.Background(), fields); err == nil {
		t.Fatal("expected signature error")
	}
	if apt.Status != models.StatusPendingPayment || apt.PaymentStatus != models.PaymentUnpaid {
		t.Errorf("appointment mutated on rejected callback: %s/%s", apt.Status, apt.PaymentStatus)
	}
	if notifier.sent != 0 {
		t.Errorf("notification sent on rejected callback")
	}
}

func TestConfirmSuccessUnknownTransaction(t *testing.T) {
	svc := newTestService(newFakeStore(), &countingNotifier{})
	fields := signCallback(t, map[string]string{
		"status":             "COMPLETE",
		"transaction_uuid":   "CLK-missing",
		"signed_field_names": "status,transaction_uuid",
	})
	if _, err := svc.ConfirmSuccess(context.Background(), fields); err != ErrTransactionNotFound {
		t.Errorf("err = %v, want ErrTransactionNotFound", err)
	}
}

func TestConfirmSuccessDuplicateCallbacksConfirmOnce(t *testing.T) {
	store := newFakeStore()
	store.add(pendingAppointment("CLK-txn-3"))
	notifier := &countingNotifier{}
	svc := newTestService(store, notifier)

	fields := signCallback(t, map[string]string{
		"status":             "COMPLETE",
		"transaction_uuid":   "CLK-txn-3",
		"signed_field_names": "status,transaction_uuid",
	})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ConfirmSuccess(context.Background(), fields); err != nil {
				t.Errorf("ConfirmSuccess: %v", err)
			}
		}()
	}
	wg.Wait()

	if notifier.sent != 1 {
		t.Errorf("notifier.sent = %d, want exactly 1 for duplicate callbacks", notifier.sent)
	}
	apt := store.byTxn["CLK-txn-3"]
	if apt.PaymentStatus != models.PaymentPaid || apt.Status != models.StatusBooked {
		t.Errorf("final state = %s/%s", apt.Status, apt.PaymentStatus)
	}
}

func TestInitiateBuildsSignedForm(t *testing.T) {
	store := newFakeStore()
	apt := pendingAppointment("")
	apt.PaymentResult = models.PaymentResult{}
	store.add(apt)
	svc := newTestService(store, nil)

	res, err := svc.Initiate(context.Background(), apt.ID, apt.PatientID, "https://clinic.test/s", "https://clinic.test/f")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if res.FormData.TotalAmount != "500.00" {
		t.Errorf("total_amount = %q", res.FormData.TotalAmount)
	}
	if res.TransactionUUID == "" || apt.PaymentResult.TransactionID != res.TransactionUUID {
		t.Errorf("transaction not attached: %+v", apt.PaymentResult)
	}
	if apt.PaymentResult.Status != "pending" {
		t.Errorf("payment result status = %q", apt.PaymentResult.Status)
	}
}

func TestInitiateRejectsPaidAppointment(t *testing.T) {
	store := newFakeStore()
	apt := pendingAppointment("CLK-txn-4")
	apt.PaymentStatus = models.PaymentPaid
	store.add(apt)
	svc := newTestService(store, nil)

	if _, err := svc.Initiate(context.Background(), apt.ID, apt.PatientID, "s", "f"); err != ErrAlreadyPaid {
		t.Errorf("err = %v, want ErrAlreadyPaid", err)
	}
}

func TestInitiateWrongPatient(t *testing.T) {
	store := newFakeStore()
	apt := pendingAppointment("")
	store.add(apt)
	svc := newTestService(store, nil)

	if _, err := svc.Initiate(context.Background(), apt.ID, primitive.NewObjectID(), "s", "f"); err != ErrAppointmentNotFound {
		t.Errorf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestRecordFailureResetsState(t *testing.T) {
	store := newFakeStore()
	apt := pendingAppointment("CLK-txn-5")
	apt.Status = models.StatusPendingPayment
	store.add(apt)
	svc := newTestService(store, nil)

	svc.RecordFailure(context.Background(), map[string]string{"transaction_uuid": "CLK-txn-5"})
	if apt.Status != models.StatusPendingPayment || apt.PaymentStatus != models.PaymentUnpaid {
		t.Errorf("state = %s/%s", apt.Status, apt.PaymentStatus)
	}
}
