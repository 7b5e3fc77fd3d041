// Copyright (c) 2020 Sperax
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

package overlay

import "github.com/hcnet/hcnet-core/overlay/wire"

// Category is the dispatch class a MessageRouter assigns to every
// inbound message type.
type Category int

const (
	CategoryHandshake Category = iota
	CategoryControl
	CategoryFloodTX
	CategoryInboundConsensusFetch
	CategoryConsensus
	CategorySurvey
)

func (c Category) String() string {
	switch c {
	case CategoryHandshake:
		return "handshake"
	case CategoryControl:
		return "control"
	case CategoryFloodTX:
		return "flood-tx"
	case CategoryInboundConsensusFetch:
		return "inbound-consensus-fetch"
	case CategoryConsensus:
		return "consensus"
	case CategorySurvey:
		return "survey"
	default:
		return "unknown"
	}
}

// SchedClass is the cooperative scheduler class a dispatch runs under.
type SchedClass int

const (
	SchedInlineSync SchedClass = iota
	SchedNormal
	SchedDroppable
)

// categoryTable fixes each message type's routing category.
var categoryTable = map[wire.MessageType]Category{
	wire.HELLO: CategoryHandshake,
	wire.AUTH:  CategoryHandshake,

	wire.GET_PEERS:          CategoryControl,
	wire.PEERS:              CategoryControl,
	wire.ERROR_MSG:          CategoryControl,
	wire.SEND_MORE:          CategoryControl,
	wire.SEND_MORE_EXTENDED: CategoryControl,

	wire.TRANSACTION:  CategoryFloodTX,
	wire.FLOOD_ADVERT: CategoryFloodTX,
	wire.FLOOD_DEMAND: CategoryFloodTX,

	wire.GET_TX_SET:        CategoryInboundConsensusFetch,
	wire.GET_SCP_QUORUMSET: CategoryInboundConsensusFetch,
	wire.GET_SCP_STATE:     CategoryInboundConsensusFetch,

	wire.DONT_HAVE:          CategoryConsensus,
	wire.TX_SET:             CategoryConsensus,
	wire.GENERALIZED_TX_SET: CategoryConsensus, // deliberately classed exactly like TX_SET
	wire.SCP_QUORUMSET:      CategoryConsensus,
	wire.SCP_MESSAGE:        CategoryConsensus,

	wire.SURVEY_REQUEST:  CategorySurvey,
	wire.SURVEY_RESPONSE: CategorySurvey,
}

// classifyMessage returns the Category for t, defaulting to Control for
// any type absent from the table (there is none today, but an added
// message type fails safe rather than panicking).
func classifyMessage(t wire.MessageType) Category {
	if c, ok := categoryTable[t]; ok {
		return c
	}
	return CategoryControl
}

// schedClassFor maps a Category to its scheduler class.
func schedClassFor(cat Category) SchedClass {
	switch cat {
	case CategoryHandshake:
		return SchedInlineSync
	case CategoryFloodTX, CategoryInboundConsensusFetch:
		return SchedDroppable
	default:
		return SchedNormal
	}
}

// dropIfUnsynced reports whether messages of this category are
// discarded while the ledger is not synced; only flood transaction
// traffic is.
func dropIfUnsynced(cat Category) bool { return cat == CategoryFloodTX }

// creditToken returns a message's flow-control credit exactly once,
// whether the message it guards is processed or discarded. Go has no
// destructors, so Release is called explicitly on every code path
// instead of relying on scope exit.
type creditToken struct {
	fw       *FlowWindow
	byteSize int
	released bool
	isFlood  bool
}

// Release returns this token's credit to the FlowController. Safe to
// call more than once.
func (t *creditToken) Release() {
	if t == nil || t.released || !t.isFlood {
		return
	}
	t.released = true
	_ = t.fw.ReturnInboundCredit(t.byteSize)
}

// InboundDispatch is one inbound message queued for processing, carrying
// its category, scheduler class, and credit token.
type InboundDispatch struct {
	Conn     *Connection
	Envelope *wire.Envelope
	Message  wire.Message
	Category Category
	Class    SchedClass
	Token    *creditToken
}

// MessageRouter assigns a category and scheduler class to every inbound
// authenticated message and decides whether it is eligible to be
// dropped while the ledger trails.
type MessageRouter struct {
	synced func() bool
}

// NewMessageRouter builds a router that consults synced() to decide
// whether droppable-flood messages should be discarded.
func NewMessageRouter(synced func() bool) *MessageRouter {
	return &MessageRouter{synced: synced}
}

// Route classifies env and constructs its dispatch. A flood message
// discarded for being out-of-sync still has its credit returned through
// the token before Route reports the discard.
func (r *MessageRouter) Route(c *Connection, env *wire.Envelope, msg wire.Message) (*InboundDispatch, bool) {
	cat := classifyMessage(env.Type)
	class := schedClassFor(cat)

	isFlood := cat == CategoryFloodTX
	token := &creditToken{fw: c.flow, byteSize: len(env.Body), isFlood: isFlood}

	if cat == CategoryHandshake {
		return &InboundDispatch{Conn: c, Envelope: env, Message: msg, Category: cat, Class: class}, true
	}

	if dropIfUnsynced(cat) && r.synced != nil && !r.synced() {
		token.Release()
		return nil, false
	}

	return &InboundDispatch{Conn: c, Envelope: env, Message: msg, Category: cat, Class: class, Token: token}, true
}
