package features

// defaultFeatures is the fixed seed set every vector starts from, zeroed.
// It is the union of the feature columns the exported model family has
// historically consumed, so a model whose bundle asks for a column the
// dataset no longer carries still receives a defined zero instead of a
// missing key.
var defaultFeatures = []string{
	// smoothed form and goal-difference dispersion
	"home_goal_diff_std5",
	"away_goal_diff_std5",
	"goal_diff_std_gap5",
	"home_goal_diff_exp_decay",
	"away_goal_diff_exp_decay",
	"goal_diff_exp_decay_gap",
	"home_xg_diff_std5",
	"away_xg_diff_std5",
	"xg_diff_std_gap5",
	"home_xg_diff_exp_decay",
	"away_xg_diff_exp_decay",
	"xg_diff_exp_decay_gap",
	"home_shot_diff_std5",
	"away_shot_diff_std5",
	"shot_diff_std_gap5",
	"home_shot_diff_exp_decay",
	"away_shot_diff_exp_decay",
	"shot_diff_exp_decay_gap",
	"home_recent_games_frac",
	"away_recent_games_frac",
	// rolling shot volumes and their gaps
	"home_shots_for_avg5",
	"home_shots_allowed_avg5",
	"away_shots_for_avg5",
	"away_shots_allowed_avg5",
	"shot_vol_gap_avg5",
	"shot_suppress_gap_avg5",
	"log_shot_ratio_avg5",
	"shots_tempo_avg5",
	// rolling scoring form
	"att_gap_avg5",
	"def_gap_avg5",
	"points_gap_avg5",
	"xg_att_gap_avg5",
	"xg_def_gap_avg5",
	"log_xg_ratio_avg5",
	"home_goals_for_avg5",
	"home_goals_against_avg5",
	"away_goals_for_avg5",
	"away_goals_against_avg5",
	// elo block
	"elo_home_pre",
	"elo_away_pre",
	"elo_mean_pre",
	"elo_gap_pre",
	"elo_home_expectation",
	"elo_expectation_gap",
	// momentum deltas (season z-scored)
	"momentum_points_last3_delta_season_z",
	"momentum_points_last2_delta_season_z",
	"momentum_points_last8_delta_season_z",
	"momentum_points_pct_last3_delta_season_z",
	"momentum_goal_diff_last3_delta_season_z",
	"momentum_goal_diff_last2_delta_season_z",
	"momentum_goal_diff_last8_delta_season_z",
	"momentum_xg_diff_last3_delta_season_z",
	"momentum_xg_diff_last2_delta_season_z",
	"momentum_xg_diff_last8_delta_season_z",
	"momentum_points_exp_decay_delta_season_z",
	"momentum_xg_exp_decay_delta_season_z",
	"momentum_matches_last14_delta_season_z",
	"momentum_travel_rest_ratio_delta_season_z",
	"momentum_forecast_win_prev_delta_season_z",
	"momentum_forecast_trend_delta_season_z",
	"momentum_fixture_congestion_delta",
	"shot_volume_gap_avg3_season_z",
	"shot_suppress_gap_avg3_season_z",
	"shots_tempo_avg3_season_z",
	"elo_gap_pre_season_z",
	"form_pct_diff_last5_season_z",
	"form_diff_last5_season_z",
	"rest_diff_season_z",
	"fixture_congestion_flag_pair",
	"rest_reset_flag_pair",
	"match_day_index_season_z",
	"match_day_of_year_norm_season_z",
	"match_weekday_index_season_z",
	// market block
	"forecast_home_win",
	"forecast_draw",
	"forecast_away_win",
	"market_home_edge",
	"market_entropy",
	"market_logit_home",
	"market_max_prob",
	"prob_edge",
	"market_vs_elo_edge",
	"match_day_index",
	"match_day_of_year_norm",
	"match_weekday_index",
}
