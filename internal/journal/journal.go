// Package journal defines the stable message ids attached to operator-facing
// log records and journal events. Operators filter on these to tell
// "never started" from "crashed mid-cycle" from "closed but unpublished".
package journal

const (
	ServicePrepareServer          = "auction_worker_service_prepare_server"
	ServiceStartAuction           = "auction_worker_service_start_auction"
	ServiceEndFirstPause          = "auction_worker_service_end_first_pause"
	ServiceEndBidStage            = "auction_worker_service_end_bid_stage"
	ServiceNextStage              = "auction_worker_service_next_stage"
	ServiceEndAuction             = "auction_worker_service_end_auction"
	ServiceAuctionCancelled       = "auction_worker_service_auction_canceled"
	ServiceAuctionStatusCancelled = "auction_worker_service_auction_status_canceled"
	ServiceAuctionReschedule      = "auction_worker_service_auction_reschedule"
	ServiceAuctionNotFound        = "auction_worker_service_auction_not_found"
	ServiceStopAuctionWorker      = "auction_worker_service_stop_auction_worker"
	ServiceMissedJob              = "auction_worker_service_missed_job"
	ServiceTransitionFailed       = "auction_worker_service_transition_failed"
	ServicePostAudit              = "auction_worker_service_post_audit"
	ServicePublishRetry           = "auction_worker_service_publish_retry"
	ServicePublishFailed          = "auction_worker_service_publish_failed"
	BidsReceived                  = "auction_worker_bids_received"
)
