// Package grpcapi exposes the matchmaking core over gRPC.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/muzz-matchmaking/internal/app"
	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
	"github.com/oggyb/muzz-matchmaking/internal/service/discovery"
	"github.com/oggyb/muzz-matchmaking/internal/service/matching"
	"github.com/oggyb/muzz-matchmaking/internal/service/messaging"
	"github.com/oggyb/muzz-matchmaking/internal/service/notification"
	"github.com/oggyb/muzz-matchmaking/internal/service/premium"
	"github.com/oggyb/muzz-matchmaking/internal/service/profile"
	"github.com/oggyb/muzz-matchmaking/internal/service/quota"
)

const ServiceName = "muzz.matchmaking.v1.Matchmaking"

// Server holds the core services behind the gRPC methods.
type Server struct {
	appCtx        *app.AppContext
	premium       *premium.Resolver
	discovery     *discovery.Service
	matching      *matching.Service
	messaging     *messaging.Service
	profiles      *profile.Service
	notifications *notification.Service
}

// NewServer wires every core service from appCtx.
func NewServer(appCtx *app.AppContext) *Server {
	resolver := premium.NewResolver(appCtx)
	tracker := quota.NewTracker(appCtx.Config.Quota)
	disc := discovery.NewService(appCtx, resolver, tracker)

	return &Server{
		appCtx:        appCtx,
		premium:       resolver,
		discovery:     disc,
		matching:      matching.NewService(appCtx, resolver, tracker),
		messaging:     messaging.NewService(appCtx, resolver, tracker),
		profiles:      profile.NewService(appCtx, resolver, tracker, disc),
		notifications: notification.NewService(appCtx),
	}
}

// Discovery is exposed for startup tasks such as the geo index rebuild.
func (s *Server) Discovery() *discovery.Service { return s.discovery }

// Premium is exposed for the expiry sweep.
func (s *Server) Premium() *premium.Resolver { return s.premium }

// unary adapts a method body (caller id in, response out) to a MethodDesc.
// Errors leave through svcErr.Map so clients only ever see status codes.
func unary[Req, Resp any](name string, fn func(*Server, context.Context, uint64, *Req) (*Resp, error)) grpc.MethodDesc {
	call := func(s *Server, ctx context.Context, req *Req) (any, error) {
		userID, ok := UserID(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing caller identity")
		}
		resp, err := fn(s, ctx, userID, req)
		if err != nil {
			return nil, svcErr.Map(err)
		}
		return resp, nil
	}

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Error(codes.InvalidArgument, "malformed request body")
			}
			s := srv.(*Server)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes the Matchmaking service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary("SelectCandidates", (*Server).selectCandidates),
		unary("CheckSwipeable", (*Server).checkSwipeable),
		unary("Like", (*Server).like),
		unary("Dislike", (*Server).dislike),
		unary("Unmatch", (*Server).unmatch),
		unary("ListLiked", (*Server).listLiked),
		unary("GetMatches", (*Server).getMatches),
		unary("GetMatch", (*Server).getMatch),
		unary("ListLikedYou", (*Server).listLikedYou),
		unary("ListNewLikedYou", (*Server).listNewLikedYou),
		unary("CountLikedYou", (*Server).countLikedYou),
		unary("GetMessages", (*Server).getMessages),
		unary("SendMessage", (*Server).sendMessage),
		unary("MarkAsRead", (*Server).markAsRead),
		unary("ListConversations", (*Server).listConversations),
		unary("GetQuotaStatus", (*Server).getQuotaStatus),
		unary("ResolveEntitlement", (*Server).resolveEntitlement),
		unary("GetNotifications", (*Server).getNotifications),
		unary("ResetNewLike", (*Server).resetNewLike),
		unary("GetProfile", (*Server).getProfile),
		unary("UpdateProfile", (*Server).updateProfile),
		unary("AddPhoto", (*Server).addPhoto),
		unary("RemovePhoto", (*Server).removePhoto),
		unary("AddMedia", (*Server).addMedia),
		unary("RemoveMedia", (*Server).removeMedia),
	},
	Metadata: "muzz/matchmaking/v1/matchmaking.json",
}

func (s *Server) selectCandidates(ctx context.Context, userID uint64, _ *Empty) (*ProfilesResponse, error) {
	profiles, err := s.discovery.SelectCandidates(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfilesResponse{Profiles: profiles}, nil
}

func (s *Server) checkSwipeable(ctx context.Context, userID uint64, _ *Empty) (*SwipeableResponse, error) {
	u, err := s.discovery.CheckSwipeable(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SwipeableResponse{Swipes: u}, nil
}

func (s *Server) like(ctx context.Context, userID uint64, req *TargetRequest) (*LikeResponse, error) {
	return s.matching.Like(ctx, userID, req.TargetUserID)
}

func (s *Server) dislike(ctx context.Context, userID uint64, req *TargetRequest) (*SuccessResponse, error) {
	if err := s.matching.Dislike(ctx, userID, req.TargetUserID); err != nil {
		return nil, err
	}
	return &SuccessResponse{Success: true}, nil
}

func (s *Server) unmatch(ctx context.Context, userID uint64, req *MatchRequest) (*SuccessResponse, error) {
	if err := s.matching.Unmatch(ctx, userID, req.MatchID); err != nil {
		return nil, err
	}
	return &SuccessResponse{Success: true}, nil
}

func (s *Server) listLiked(ctx context.Context, userID uint64, _ *Empty) (*ProfilesResponse, error) {
	profiles, err := s.matching.ListLiked(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfilesResponse{Profiles: profiles}, nil
}

func (s *Server) getMatches(ctx context.Context, userID uint64, _ *Empty) (*MatchesResponse, error) {
	matches, err := s.matching.GetMatches(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MatchesResponse{Matches: matches}, nil
}

func (s *Server) getMatch(ctx context.Context, userID uint64, req *MatchRequest) (*MatchResponse, error) {
	m, err := s.matching.GetMatch(ctx, userID, req.MatchID)
	if err != nil {
		return nil, err
	}
	return &MatchResponse{Match: m}, nil
}

func (s *Server) listLikedYou(ctx context.Context, userID uint64, req *PageRequest) (*LikersResponse, error) {
	return s.matching.ListLikedYou(ctx, userID, req.PaginationToken)
}

func (s *Server) listNewLikedYou(ctx context.Context, userID uint64, req *PageRequest) (*LikersResponse, error) {
	return s.matching.ListNewLikedYou(ctx, userID, req.PaginationToken)
}

func (s *Server) countLikedYou(ctx context.Context, userID uint64, _ *Empty) (*CountResponse, error) {
	n, err := s.matching.CountLikedYou(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CountResponse{Count: n}, nil
}

func (s *Server) getMessages(ctx context.Context, userID uint64, req *ConversationRequest) (*MessagesResponse, error) {
	msgs, err := s.messaging.GetMessages(ctx, userID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	return &MessagesResponse{Messages: msgs}, nil
}

func (s *Server) sendMessage(ctx context.Context, userID uint64, req *SendMessageRequest) (*MessageResponse, error) {
	m, err := s.messaging.SendMessage(ctx, userID, req.ConversationID, req.Content)
	if err != nil {
		return nil, err
	}
	return &MessageResponse{Message: m}, nil
}

func (s *Server) markAsRead(ctx context.Context, userID uint64, req *ConversationRequest) (*ReadResponse, error) {
	return s.messaging.MarkAsRead(ctx, userID, req.ConversationID)
}

func (s *Server) listConversations(ctx context.Context, userID uint64, _ *Empty) (*ConversationsResponse, error) {
	convs, err := s.messaging.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ConversationsResponse{Conversations: convs}, nil
}

func (s *Server) getQuotaStatus(ctx context.Context, userID uint64, _ *Empty) (*QuotaStatusResponse, error) {
	return s.profiles.QuotaStatus(ctx, userID)
}

func (s *Server) resolveEntitlement(ctx context.Context, userID uint64, _ *Empty) (*EntitlementResponse, error) {
	_, ok, err := s.premium.ResolveByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &EntitlementResponse{IsPremium: ok}, nil
}

func (s *Server) getNotifications(ctx context.Context, userID uint64, _ *Empty) (*NotificationsResponse, error) {
	return s.notifications.GetNotifications(ctx, userID)
}

func (s *Server) resetNewLike(ctx context.Context, userID uint64, _ *Empty) (*SuccessResponse, error) {
	if err := s.notifications.ResetNewLike(ctx, userID); err != nil {
		return nil, err
	}
	return &SuccessResponse{Success: true}, nil
}

// getProfile returns the caller's own profile, or another user's public one
// when userId is set.
func (s *Server) getProfile(ctx context.Context, userID uint64, req *UserRequest) (*ProfileResponse, error) {
	if req.UserID != 0 && req.UserID != userID {
		p, err := s.profiles.GetByUser(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		return &ProfileResponse{Profile: p}, nil
	}
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{Profile: p}, nil
}

func (s *Server) updateProfile(ctx context.Context, userID uint64, req *UpdateProfileRequest) (*ProfileResponse, error) {
	p, err := s.profiles.Update(ctx, userID, *req)
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{Profile: p}, nil
}

func (s *Server) addPhoto(ctx context.Context, userID uint64, req *PhotoRequest) (*ProfileResponse, error) {
	p, err := s.profiles.AddPhoto(ctx, userID, req.URL)
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{Profile: p}, nil
}

func (s *Server) removePhoto(ctx context.Context, userID uint64, req *PhotoRequest) (*ProfileResponse, error) {
	p, err := s.profiles.RemovePhoto(ctx, userID, req.URL)
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{Profile: p}, nil
}

func (s *Server) addMedia(ctx context.Context, userID uint64, req *MediaRequest) (*ProfileResponse, error) {
	p, err := s.profiles.AddMedia(ctx, userID, req.media())
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{Profile: p}, nil
}

func (s *Server) removeMedia(ctx context.Context, userID uint64, req *MediaRequest) (*ProfileResponse, error) {
	p, err := s.profiles.RemoveMedia(ctx, userID, req.URL)
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{Profile: p}, nil
}
