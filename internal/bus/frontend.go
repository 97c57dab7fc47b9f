package bus

import (
	"github.com/rs/zerolog/log"

	"github.com/fitsch/aggregator/internal/model"
	"github.com/fitsch/aggregator/internal/query"
)

// Resolver is the slice of the query engine the front-end needs.
type Resolver interface {
	Resolve(req query.Request, reply query.ReplyFunc)
	GetProductAtURL(storeID model.StoreID, url string, reply func(model.Product, bool))
}

// Frontend subscribes to query traffic on the bus and feeds it into the
// resolver, addressing each reply back to the message's sender.
type Frontend struct {
	client   *Client
	resolver Resolver
}

// NewFrontend wires a resolver to a bus client. Attach registers the
// handlers; it may be called before or after the client connects.
func NewFrontend(client *Client, resolver Resolver) *Frontend {
	return &Frontend{client: client, resolver: resolver}
}

// Attach registers the query and get-product handlers.
func (f *Frontend) Attach() {
	f.client.AddHandler("query", f.handleQuery)
	f.client.AddHandler("get-product", f.handleGetProduct)
}

// handleQuery fans one message out into a resolution per term. Each term
// produces its own query-result so partial answers reach the client as soon
// as they are ready.
func (f *Frontend) handleQuery(c *Client, msg Message) {
	if !ValidateQuery(msg.Content) {
		return
	}

	requestID, _ := numberField(msg.Content, "request-id")
	storeBits, _ := numberField(msg.Content, "stores")
	depth, _ := numberField(msg.Content, "depth")
	forceRefresh := boolField(msg.Content, "force-refresh")
	selection := model.StoreSelection(uint64(storeBits))

	terms, _ := msg.Content["terms"].([]any)
	for _, t := range terms {
		term, ok := t.(string)
		if !ok || term == "" {
			continue
		}

		src := msg.Src
		f.resolver.Resolve(query.Request{
			QueryString:  term,
			Stores:       selection,
			Depth:        int(depth),
			ForceRefresh: forceRefresh,
		}, func(products []model.Product) {
			err := c.Write(Message{
				Type:      "query-result",
				Dest:      src,
				OnlyFirst: true,
				Content: map[string]any{
					"term":       term,
					"request-id": requestID,
					"items":      products,
				},
			})
			if err != nil {
				log.Warn().Err(err).Str("term", term).Msg("Failed to send query result")
			}
		})
	}
}

// handleGetProduct resolves a single product by canonical URL.
func (f *Frontend) handleGetProduct(c *Client, msg Message) {
	if !ValidateGetProduct(msg.Content) {
		return
	}

	storeBits, _ := numberField(msg.Content, "store")
	url, _ := stringField(msg.Content, "url")
	src := msg.Src

	f.resolver.GetProductAtURL(model.StoreID(uint64(storeBits)), url, func(p model.Product, ok bool) {
		content := map[string]any{"url": url, "found": ok}
		if ok {
			content["product"] = p
		}
		err := c.Write(Message{
			Type:      "product-result",
			Dest:      src,
			OnlyFirst: true,
			Content:   content,
		})
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Failed to send product result")
		}
	})
}
