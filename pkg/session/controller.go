package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/siddontang/loggers"

	"github.com/synctap/posbridge/pkg/csvbootstrap"
	"github.com/synctap/posbridge/pkg/dbconn"
	"github.com/synctap/posbridge/pkg/license"
	"github.com/synctap/posbridge/pkg/rowop"
	"github.com/synctap/posbridge/pkg/schema"
	"github.com/synctap/posbridge/pkg/tenant"
	"github.com/synctap/posbridge/pkg/wire"
)

// identifyGrace is how long a session is kept open after a terminal
// identification failure, so the peer can observe the error event
// before the transport tears down.
const identifyGrace = 1 * time.Second

// Controller wires every domain component a READY session can reach:
// row-op dispatch, DDL translation, schema materialisation, and CSV
// bootstrap, all gated behind the License/Tenant Service.
type Controller struct {
	license      *license.Service
	dispatcher   *rowop.Dispatcher
	materialiser *schema.Materialiser
	importer     *csvbootstrap.Importer
	pool         *dbconn.Pool
	dbConfig     *dbconn.DBConfig
	cfg          *tenant.ServerConfig
	logger       loggers.Advanced
}

// New builds a Controller over already-constructed domain services.
func New(
	lic *license.Service,
	dispatcher *rowop.Dispatcher,
	materialiser *schema.Materialiser,
	importer *csvbootstrap.Importer,
	pool *dbconn.Pool,
	dbConfig *dbconn.DBConfig,
	cfg *tenant.ServerConfig,
	logger loggers.Advanced,
) *Controller {
	return &Controller{
		license:      lic,
		dispatcher:   dispatcher,
		materialiser: materialiser,
		importer:     importer,
		pool:         pool,
		dbConfig:     dbConfig,
		cfg:          cfg,
		logger:       logger,
	}
}

// NewSession starts tracking a freshly accepted connection. id is an
// opaque, transport-assigned connection identifier used only for
// logging and the chunk-upload map key.
func (c *Controller) NewSession(id string, sender Sender) *Session {
	return newSession(id, sender)
}

// HandleFrame decodes one transport frame into an envelope and routes
// it.
func (c *Controller) HandleFrame(ctx context.Context, sess *Session, frame []byte) error {
	env, err := wire.DecodeEnvelope(frame)
	if err != nil {
		c.logger.Warnf("session %s: %v", sess.ID, err)
		return err
	}
	return c.HandleEvent(ctx, sess, env)
}

// HandleEvent routes one decoded envelope through the state machine.
// Per session, events are handled sequentially by the caller: this
// method does not itself serialise concurrent calls for the same
// session.
func (c *Controller) HandleEvent(ctx context.Context, sess *Session, env wire.Envelope) error {
	if env.Event == wire.EventPing {
		return sess.sender.Send(wire.EventPong, struct{}{})
	}

	state := sess.State()
	if state == StateClosed {
		return nil
	}

	if env.Event == wire.EventIdentify {
		if state != StateNew {
			return nil
		}
		return c.handleIdentify(ctx, sess, env)
	}

	// Invariant: a session that has not completed identification
	// receives no response other than identified, an error variant, or
	// pong, and conversely emits nothing for any other event it's sent
	// early.
	if state != StateReady {
		c.logger.Warnf("session %s: event %q ignored before ready (state=%s)", sess.ID, env.Event, state)
		return nil
	}

	switch env.Event {
	case wire.EventSyncData:
		return c.handleSyncData(ctx, sess, env)
	case wire.EventBatchSync:
		return c.handleBatchSync(ctx, sess, env)
	case wire.EventSyncDDLOperation:
		return c.handleSyncDDLOperation(ctx, sess, env)
	case wire.EventVerifyAndSyncTable:
		return c.handleVerifyAndSyncTable(ctx, sess, env)
	case wire.EventCreateTableFromSchema:
		return c.handleCreateTableFromSchema(ctx, sess, env)
	case wire.EventTableSchemaResponse:
		return c.handleTableSchemaResponse(ctx, sess, env)
	case wire.EventFullDataSyncResponse:
		return c.handleBootstrapBatch(ctx, sess, env, rowop.ModeBootstrap)
	case wire.EventInitialSyncDataResponse:
		return c.handleBootstrapBatch(ctx, sess, env, rowop.ModeBootstrap)
	case wire.EventForceSyncRequest:
		return c.handleForceSyncRequest(ctx, sess, env)
	case wire.EventClearDatabaseTables:
		return c.handleClearDatabaseTables(ctx, sess, env)
	case wire.EventCSVBulkUpload:
		return c.handleCSVBulkUpload(ctx, sess, env)
	case wire.EventCSVBulkUploadStart:
		return c.handleCSVBulkUploadStart(ctx, sess, env)
	case wire.EventCSVBulkUploadChunk:
		return c.handleCSVBulkUploadChunk(ctx, sess, env)
	default:
		c.logger.Warnf("session %s: unrecognised event %q", sess.ID, env.Event)
		return nil
	}
}

// HandleDisconnect cancels pending chunk reassembly and closes the
// session. Any database operation already in flight may still complete,
// but the (now closed) peer never sees its result.
func (c *Controller) HandleDisconnect(sess *Session) {
	sess.Cancel()
}

func (c *Controller) handleIdentify(ctx context.Context, sess *Session, env wire.Envelope) error {
	var id wire.Identify
	if err := json.Unmarshal(env.Data, &id); err != nil {
		sess.setState(StateIdentifying)
		return sess.rejectAndClose(wire.EventIdentificationError, errPayload("malformed identify payload"), identifyGrace)
	}
	if id.StoreID == "" || id.AppID == "" || id.ServiceType == "" {
		sess.setState(StateIdentifying)
		return sess.rejectAndClose(wire.EventIdentificationError, errPayload("storeId, appId, and serviceType are required"), identifyGrace)
	}

	sess.setState(StateIdentifying)

	var info *license.StoreInfo
	if id.ServiceType == "advanced_online_report" {
		result := c.license.Validate(ctx, id.StoreID, id.AppID)
		if !result.Valid {
			return sess.rejectAndClose(wire.EventLicenseError, wire.LicenseError{Code: 400, Message: result.Err}, identifyGrace)
		}
		if result.Expired {
			return sess.rejectAndClose(wire.EventLicenseExpired, wire.LicenseError{Code: 410, Message: "license expired"}, identifyGrace)
		}
		info = result.Store
	}

	database, ok := c.license.DatabaseFor(id.StoreID, id.AppID)
	if !ok {
		return sess.rejectAndClose(wire.EventIdentificationError, errPayload("unknown store/app pair"), identifyGrace)
	}

	sess.bind(id.StoreID, id.AppID, id.ServiceType, database, info)
	sess.setState(StateReady)
	return sess.sender.Send(wire.EventIdentified, wire.Identified{StoreID: id.StoreID, AppID: id.AppID})
}

func errPayload(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func eventUnmarshal(env wire.Envelope, v any) error {
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("session: decoding %s payload: %w", env.Event, err)
	}
	return nil
}
