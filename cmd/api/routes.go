package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	appointmenthandler "github.com/qerbie/qerbie-backend/internal/appointment/handler"
	authhandler "github.com/qerbie/qerbie-backend/internal/auth/handler"
	cataloghandler "github.com/qerbie/qerbie-backend/internal/catalog/handler"
	"github.com/qerbie/qerbie-backend/internal/customer"
	merchanthandler "github.com/qerbie/qerbie-backend/internal/merchant/handler"
	merchantmw "github.com/qerbie/qerbie-backend/internal/merchant/middleware"
	notificationhandler "github.com/qerbie/qerbie-backend/internal/notification/handler"
	orderhandler "github.com/qerbie/qerbie-backend/internal/order/handler"
	qrdomain "github.com/qerbie/qerbie-backend/internal/qr/domain"
	qrhandler "github.com/qerbie/qerbie-backend/internal/qr/handler"
	qrmw "github.com/qerbie/qerbie-backend/internal/qr/middleware"
	queuehandler "github.com/qerbie/qerbie-backend/internal/queue/handler"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/i18n"
	"github.com/qerbie/qerbie-backend/pkg/logger"
)

// routerDeps is everything the HTTP surface is assembled from
type routerDeps struct {
	allowedOrigins []string
	health         http.HandlerFunc
	authenticate   func(http.Handler) http.Handler
	members        merchantmw.MembershipLoader
	resolver       qrmw.Resolver
	session        customer.Options

	auth         *authhandler.AuthHandler
	merchants    *merchanthandler.MerchantHandler
	catalog      *cataloghandler.CatalogHandler
	qr           *qrhandler.QRHandler
	queues       *queuehandler.QueueHandler
	appointments *appointmenthandler.AppointmentHandler
	orders       *orderhandler.OrderHandler
	notification *notificationhandler.NotificationHandler

	logger *logger.Logger
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(d.logger))
	r.Use(httputil.Recoverer(d.logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Accept-Language"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)

	r.Get("/health", d.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", d.auth.Signup)
			r.Post("/login", d.auth.Login)
			r.Post("/refresh", d.auth.Refresh)
			r.Post("/logout", d.auth.Logout)

			r.With(d.authenticate).Get("/me", d.auth.Me)
		})

		r.Route("/merchants", func(r chi.Router) {
			r.Use(d.authenticate)

			r.Get("/", d.merchants.List)
			r.Post("/", d.merchants.Create)

			r.Route("/{merchantID}", func(r chi.Router) {
				r.Use(merchantmw.Member(d.members, d.logger))
				merchantRoutes(r, d)
			})
		})
	})

	// Public customer surface behind a scanned QR token
	r.Route("/p/{token}", func(r chi.Router) {
		r.Use(qrmw.Token(d.resolver, d.logger))
		r.Use(customer.Middleware(d.session))

		r.Get("/", d.qr.Resolve)

		r.Group(func(r chi.Router) {
			r.Use(qrmw.RequireKind(qrdomain.KindTable))
			r.Get("/menu", d.catalog.Menu)
			r.Get("/orders", d.orders.MyOrders)
			r.Post("/orders", d.orders.Place)
			r.Get("/orders/{orderID}", d.orders.MyOrder)
			r.Post("/orders/{orderID}/cancel", d.orders.CancelMyOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(qrmw.RequireKind(qrdomain.KindQueue))
			r.Post("/queue/join", d.queues.Join)
			r.Get("/queue/tickets/{ticketID}", d.queues.TicketStatus)
			r.Post("/queue/tickets/{ticketID}/cancel", d.queues.CancelTicket)
		})

		r.Group(func(r chi.Router) {
			r.Use(qrmw.RequireKind(qrdomain.KindBooking))
			r.Get("/slots", d.appointments.AvailableSlots)
			r.Post("/slots/{slotID}/book", d.appointments.Book)
			r.Post("/slots/{slotID}/cancel", d.appointments.CancelBooking)
			r.Post("/requests", d.appointments.SubmitRequest)
			r.Post("/requests/{requestID}/cancel", d.appointments.CancelRequest)
		})
	})

	return r
}

// merchantRoutes registers the routes scoped to one merchant membership
func merchantRoutes(r chi.Router, d routerDeps) {
	perm := merchantmw.RequirePermission

	r.Get("/", d.merchants.Get)
	r.With(perm("merchant.update")).Patch("/", d.merchants.Update)

	r.Route("/members", func(r chi.Router) {
		r.With(perm("members.read")).Get("/", d.merchants.ListMembers)
		r.Group(func(r chi.Router) {
			r.Use(perm("members.manage"))
			r.Post("/", d.merchants.AddMember)
			r.Patch("/{memberID}", d.merchants.UpdateMember)
			r.Delete("/{memberID}", d.merchants.RemoveMember)
		})
	})

	r.Route("/products", func(r chi.Router) {
		r.With(perm("catalog.read")).Get("/", d.catalog.List)
		r.With(perm("catalog.read")).Get("/{productID}", d.catalog.Get)
		r.Group(func(r chi.Router) {
			r.Use(perm("catalog.manage"))
			r.Post("/", d.catalog.Create)
			r.Patch("/{productID}", d.catalog.Update)
			r.Delete("/{productID}", d.catalog.Delete)
		})
	})

	r.Route("/tables", func(r chi.Router) {
		r.With(perm("tables.read")).Get("/", d.orders.ListTables)
		r.With(perm("tables.read")).Get("/{tableID}", d.orders.GetTable)
		r.Group(func(r chi.Router) {
			r.Use(perm("tables.manage"))
			r.Post("/", d.orders.CreateTable)
			r.Patch("/{tableID}", d.orders.UpdateTable)
			r.Delete("/{tableID}", d.orders.DeleteTable)
		})
		r.With(perm("qr.manage")).Post("/{tableID}/rotate-token", d.qr.RotateTableToken)
	})

	r.Route("/queues", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(perm("queues.operate"))
			r.Get("/", d.queues.ListQueues)
			r.Get("/{queueID}", d.queues.GetQueue)
			r.Post("/{queueID}/open", d.queues.Open)
			r.Post("/{queueID}/close", d.queues.Close)
			r.Get("/{queueID}/tickets", d.queues.ListTickets)
			r.Post("/{queueID}/call-next", d.queues.CallNext)
			r.Post("/{queueID}/tickets/{ticketID}/transition", d.queues.Transition)
		})
		r.Group(func(r chi.Router) {
			r.Use(perm("queues.manage"))
			r.Post("/", d.queues.CreateQueue)
			r.Patch("/{queueID}", d.queues.UpdateQueue)
			r.Delete("/{queueID}", d.queues.DeleteQueue)
			r.Post("/{queueID}/reset", d.queues.Reset)
		})
		r.With(perm("qr.manage")).Post("/{queueID}/rotate-token", d.qr.RotateQueueToken)
	})

	r.Route("/slots", func(r chi.Router) {
		r.With(perm("appointments.read")).Get("/", d.appointments.ListSlots)
		r.Group(func(r chi.Router) {
			r.Use(perm("appointments.manage"))
			r.Post("/", d.appointments.CreateSlots)
			r.Post("/{slotID}/block", d.appointments.Block)
			r.Post("/{slotID}/unblock", d.appointments.Unblock)
			r.Delete("/{slotID}", d.appointments.DeleteSlot)
		})
	})

	r.Route("/appointment-requests", func(r chi.Router) {
		r.With(perm("appointments.read")).Get("/", d.appointments.ListRequests)
		r.With(perm("appointments.read")).Get("/{requestID}", d.appointments.GetRequest)
		r.With(perm("appointments.decide")).Post("/{requestID}/decide", d.appointments.Decide)
	})

	r.Route("/orders", func(r chi.Router) {
		r.With(perm("orders.read")).Get("/", d.orders.List)
		r.With(perm("orders.read")).Get("/{orderID}", d.orders.Get)
		// The service decides between orders.update_status and orders.cancel
		r.Post("/{orderID}/transition", d.orders.Transition)
	})

	r.Route("/qr-tokens", func(r chi.Router) {
		r.Use(perm("qr.manage"))
		r.Get("/", d.qr.ListBookingTokens)
		r.Post("/", d.qr.IssueBookingToken)
		r.Delete("/{tokenID}", d.qr.RevokeBookingToken)
	})

	r.With(perm("notifications.read")).Get("/notifications", d.notification.List)
}
