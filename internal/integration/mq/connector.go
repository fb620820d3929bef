package mq

import (
	"errors"
	"fmt"

	"github.com/ibm-messaging/mq-golang/v5/ibmmq"
)

// ErrNoMessageAvailable is the sentinel a connector returns in place of
// MQRC_NO_MSG_AVAILABLE so the browse loop and direct-get path can treat
// "nothing here yet" uniformly without reaching into backend-specific
// error types.
var ErrNoMessageAvailable = errors.New("no message available")

// ErrConnectionBroken wraps a transient remote-disconnect signal from the
// connector. The handler's retry loop only retries errors satisfying
// errors.Is(err, ErrConnectionBroken); anything else is fatal for the
// request.
var ErrConnectionBroken = errors.New("connection broken")

// transientMQReasonCodes are the MQRC values that mean the queue manager
// connection dropped out from under a request rather than the request
// itself being invalid; these are the ones spec.md §4.3's GET retry
// policy is meant to ride out.
var transientMQReasonCodes = map[int32]bool{
	ibmmq.MQRC_CONNECTION_BROKEN:    true,
	ibmmq.MQRC_Q_MGR_NOT_AVAILABLE:  true,
	ibmmq.MQRC_HOST_NOT_AVAILABLE:   true,
	ibmmq.MQRC_CONNECTION_QUIESCING: true,
}

// classifyMQError maps a raw IBM MQ error to the sentinel the handler's
// timeout and retry logic understand, or passes it through unchanged for
// anything else.
func classifyMQError(err error) error {
	var mqret *ibmmq.MQReturn
	if !errors.As(err, &mqret) {
		return err
	}
	if mqret.MQRC == ibmmq.MQRC_NO_MSG_AVAILABLE {
		return ErrNoMessageAvailable
	}
	if transientMQReasonCodes[mqret.MQRC] {
		return fmt.Errorf("%w: %v", ErrConnectionBroken, err)
	}
	return err
}

// ConnectOptions carries everything needed to establish one queue manager
// connection, gathered from the CONN request's context.
type ConnectOptions struct {
	Connection   string
	QueueManager string
	Channel      string
	Username     string
	Password     string
	TLS          bool
	KeyFile      string
	CertLabel    string
	SSLCipher    string
}

// Message is the canonical decoded form of one MQ message: payload plus
// the subset of MQMD fields the wire protocol surfaces as metadata.
type Message struct {
	Payload []byte
	MsgID   []byte
	PutDate string
	PutTime string
}

// GetOptions configures one direct or match-by-id get call.
type GetOptions struct {
	WaitMillis int32
	MatchMsgID []byte
}

// BrowseCursor walks a queue's messages in arrival order without removing
// them, holding IBM MQ's per-handle browse cursor open across calls to
// Next. A cursor spans exactly one browse-then-fetch pass (spec.md §4.3
// step 2: "Open the queue … Loop: …"); the cursor lives on the open queue
// handle itself, so closing it mid-pass and reopening would lose the
// position — that is why this is its own handle rather than a flag on a
// plain Get call.
type BrowseCursor interface {
	// Next returns the next message in queue order, or
	// ErrNoMessageAvailable once the queue is exhausted.
	Next() (Message, error)
	Close() error
}

// Connector is the seam between the handler's protocol logic and the IBM
// MQ client library, so the browse-then-fetch algorithm can be exercised
// against a fake in tests without a live queue manager.
type Connector interface {
	Connect(opts ConnectOptions) error
	Disconnect() error
	Put(queue string, payload []byte) (Message, error)
	Get(queue string, opts GetOptions) (Message, error)
	OpenBrowse(queue string) (BrowseCursor, error)
}

// ibmmqConnector is the production Connector backed by the real IBM MQ
// client bindings.
type ibmmqConnector struct {
	qmgr *ibmmq.MQQueueManager
}

func newIBMMQConnector() *ibmmqConnector {
	return &ibmmqConnector{}
}

func (c *ibmmqConnector) Connect(opts ConnectOptions) error {
	cno := ibmmq.NewMQCNO()
	cd := ibmmq.NewMQCD()

	cd.ChannelName = opts.Channel
	cd.ConnectionName = opts.Connection

	if opts.TLS {
		cd.SSLCipherSpec = opts.SSLCipher
		sco := ibmmq.NewMQSCO()
		sco.KeyRepository = opts.KeyFile
		sco.CertificateLabel = opts.CertLabel
		cno.SSLConfig = sco
	}

	cno.ClientConn = cd
	cno.Options = ibmmq.MQCNO_CLIENT_BINDING

	if opts.Username != "" {
		csp := ibmmq.NewMQCSP()
		csp.AuthenticationType = ibmmq.MQCSP_AUTH_USER_ID_AND_PWD
		csp.UserId = opts.Username
		csp.Password = opts.Password
		cno.SecurityParms = csp
	}

	qmgr, err := ibmmq.Connx(opts.QueueManager, cno)
	if err != nil {
		return err
	}
	c.qmgr = &qmgr
	return nil
}

func (c *ibmmqConnector) Disconnect() error {
	if c.qmgr == nil {
		return nil
	}
	err := c.qmgr.Disc()
	c.qmgr = nil
	return err
}

func (c *ibmmqConnector) openQueue(queue string, openOptions int32) (ibmmq.MQObject, error) {
	od := ibmmq.NewMQOD()
	od.ObjectType = ibmmq.MQOT_Q
	od.ObjectName = queue
	return c.qmgr.Open(od, openOptions)
}

func (c *ibmmqConnector) Put(queue string, payload []byte) (Message, error) {
	obj, err := c.openQueue(queue, ibmmq.MQOO_OUTPUT|ibmmq.MQOO_FAIL_IF_QUIESCING)
	if err != nil {
		return Message{}, err
	}
	defer obj.Close(0)

	md := ibmmq.NewMQMD()
	pmo := ibmmq.NewMQPMO()
	pmo.Options = ibmmq.MQPMO_NO_SYNCPOINT

	if err := obj.Put(md, pmo, payload); err != nil {
		return Message{}, err
	}

	return messageFromMD(md, payload), nil
}

// Get issues one direct get: a plain wait-get when opts.MatchMsgID is
// empty, or the destructive get-by-id that completes browse-then-fetch
// when it is set. Each call opens and closes its own queue handle, which
// is safe here because neither mode depends on a cursor surviving across
// calls — unlike browsing, see OpenBrowse.
func (c *ibmmqConnector) Get(queue string, opts GetOptions) (Message, error) {
	obj, err := c.openQueue(queue, ibmmq.MQOO_INPUT_SHARED|ibmmq.MQOO_FAIL_IF_QUIESCING)
	if err != nil {
		return Message{}, err
	}
	defer obj.Close(0)

	md := ibmmq.NewMQMD()
	gmo := ibmmq.NewMQGMO()
	gmo.Options = ibmmq.MQGMO_NO_SYNCPOINT | ibmmq.MQGMO_FAIL_IF_QUIESCING

	if opts.WaitMillis > 0 {
		gmo.Options |= ibmmq.MQGMO_WAIT
		gmo.WaitInterval = opts.WaitMillis
	}

	if len(opts.MatchMsgID) > 0 {
		gmo.MatchOptions = ibmmq.MQMO_MATCH_MSG_ID
		md.MsgId = opts.MatchMsgID
	}

	buffer := make([]byte, 4194304)
	n, err := obj.Get(md, gmo, buffer)
	if err != nil {
		return Message{}, classifyMQError(err)
	}

	return messageFromMD(md, buffer[:n]), nil
}

// ibmmqBrowseCursor holds one open queue handle for an entire
// browse-then-fetch pass, so successive Next calls advance MQ's own
// browse cursor (MQGMO_BROWSE_FIRST once, MQGMO_BROWSE_NEXT thereafter)
// instead of restarting from the head of the queue on every call.
type ibmmqBrowseCursor struct {
	obj     ibmmq.MQObject
	started bool
}

func (c *ibmmqConnector) OpenBrowse(queue string) (BrowseCursor, error) {
	obj, err := c.openQueue(queue, ibmmq.MQOO_BROWSE|ibmmq.MQOO_INPUT_SHARED|ibmmq.MQOO_FAIL_IF_QUIESCING)
	if err != nil {
		return nil, err
	}
	return &ibmmqBrowseCursor{obj: obj}, nil
}

func (c *ibmmqBrowseCursor) Next() (Message, error) {
	md := ibmmq.NewMQMD()
	gmo := ibmmq.NewMQGMO()
	gmo.Options = ibmmq.MQGMO_NO_SYNCPOINT | ibmmq.MQGMO_FAIL_IF_QUIESCING

	if c.started {
		gmo.Options |= ibmmq.MQGMO_BROWSE_NEXT
	} else {
		gmo.Options |= ibmmq.MQGMO_BROWSE_FIRST
		c.started = true
	}

	buffer := make([]byte, 4194304)
	n, err := c.obj.Get(md, gmo, buffer)
	if err != nil {
		return Message{}, classifyMQError(err)
	}

	return messageFromMD(md, buffer[:n]), nil
}

func (c *ibmmqBrowseCursor) Close() error {
	return c.obj.Close(0)
}

func messageFromMD(md *ibmmq.MQMD, payload []byte) Message {
	return Message{
		Payload: payload,
		MsgID:   append([]byte(nil), md.MsgId...),
		PutDate: md.PutDate,
		PutTime: md.PutTime,
	}
}
